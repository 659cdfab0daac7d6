package model

import "time"

// CodeRecord 代码块扩展（talk_records_code）
type CodeRecord struct {
	Id        int64     `json:"id"`
	RecordId  int64     `json:"record_id"`
	UserId    int64     `json:"user_id"`
	Lang      string    `json:"code_lang"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// FileRecord 文件扩展（talk_records_file）
type FileRecord struct {
	Id           int64     `json:"id"`
	RecordId     int64     `json:"record_id"`
	UserId       int64     `json:"user_id"`
	Source       int       `json:"file_source"`
	MediaType    MediaType `json:"file_type"`
	Suffix       string    `json:"file_suffix"`
	Size         int64     `json:"file_size"`
	Path         string    `json:"save_dir"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}
