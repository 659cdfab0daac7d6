package nats

// NATS Subject 常量定义
const (
	// SubjectTalkUpstream Access -> Talk 上行消息
	SubjectTalkUpstream = "im.talk.upstream"

	// SubjectTalkEvent 新消息事件
	SubjectTalkEvent = "im.talk.event"

	// SubjectAccessDownstreamPrefix Talk -> Access 下行消息前缀
	// 完整格式: im.access.{node_id}.downstream
	SubjectAccessDownstreamPrefix = "im.access."
	SubjectAccessDownstreamSuffix = ".downstream"

	// QueueGroupTalk Talk 服务队列组名称
	QueueGroupTalk = "talk-group"
)

// BuildAccessDownstreamSubject 构建 Access 节点下行 Subject
func BuildAccessDownstreamSubject(nodeID string) string {
	return SubjectAccessDownstreamPrefix + nodeID + SubjectAccessDownstreamSuffix
}
