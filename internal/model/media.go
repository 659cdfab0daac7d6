package model

import "strings"

// MediaType 文件媒体类型
type MediaType int

const (
	MediaTypeImage MediaType = 1
	MediaTypeVideo MediaType = 2
	MediaTypeAudio MediaType = 3
	MediaTypeOther MediaType = 4
)

var suffixMediaTypes = map[string]MediaType{
	"jpg": MediaTypeImage, "jpeg": MediaTypeImage, "png": MediaTypeImage,
	"gif": MediaTypeImage, "webp": MediaTypeImage, "bmp": MediaTypeImage,
	"heic": MediaTypeImage, "svg": MediaTypeImage,

	"mp4": MediaTypeVideo, "mov": MediaTypeVideo, "avi": MediaTypeVideo,
	"mkv": MediaTypeVideo, "webm": MediaTypeVideo, "flv": MediaTypeVideo,

	"mp3": MediaTypeAudio, "wav": MediaTypeAudio, "aac": MediaTypeAudio,
	"amr": MediaTypeAudio, "ogg": MediaTypeAudio, "m4a": MediaTypeAudio,
	"flac": MediaTypeAudio,
}

// NormalizeSuffix 去掉前导点并转小写
func NormalizeSuffix(suffix string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(suffix), "."))
}

// MediaTypeOf 根据文件后缀推导媒体类型
func MediaTypeOf(suffix string) MediaType {
	if t, ok := suffixMediaTypes[NormalizeSuffix(suffix)]; ok {
		return t
	}
	return MediaTypeOther
}
