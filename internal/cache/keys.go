package cache

import (
	"fmt"

	"sudooom.im.talk/internal/model"
)

const (
	// LastMessageKeyPrefix 会话最后一条消息预览
	// Key: im:talk:last:{talkType}:{a}_{b} 或 im:talk:last:2:{groupId}
	LastMessageKeyPrefix = "im:talk:last:"

	// UnreadKeyPrefix 未读数 Hash，field 为发送方
	// Key: im:talk:unread:{recipientId}
	UnreadKeyPrefix = "im:talk:unread:"

	// ServerRunIdsKey 在线服务实例 ZSET，score 为最后心跳（unix 秒）
	ServerRunIdsKey = "im:server:run_ids"

	// ServerUsersKeyPrefix 实例上的在线用户 SET
	// Key: im:server:{instanceId}:users
	ServerUsersKeyPrefix = "im:server:"
	serverUsersKeySuffix = ":users"
)

// ConversationKey 会话标识，私聊对双方对称
func ConversationKey(talkType model.TalkType, a, b int64) string {
	if talkType == model.TalkTypeGroup {
		return fmt.Sprintf("%d:%d", talkType, b)
	}
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d_%d", talkType, a, b)
}

// BuildLastMessageKey 构建预览 Key
func BuildLastMessageKey(conversation string) string {
	return LastMessageKeyPrefix + conversation
}

// BuildUnreadKey 构建未读数 Key
func BuildUnreadKey(recipientId int64) string {
	return fmt.Sprintf("%s%d", UnreadKeyPrefix, recipientId)
}

// BuildServerUsersKey 构建实例在线用户 Key
func BuildServerUsersKey(instanceId string) string {
	return ServerUsersKeyPrefix + instanceId + serverUsersKeySuffix
}
