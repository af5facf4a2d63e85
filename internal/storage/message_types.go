package storage

import "time"

// DocumentUploadMessage 异步上传消息，由上传接口发布、消费者处理
type DocumentUploadMessage struct {
	SubmissionUUID      string    `json:"submission_uuid"`
	SubmissionTimestamp time.Time `json:"submission_timestamp"`
	OriginalFilename    string    `json:"original_filename"`
	OriginalFilePathOSS string    `json:"original_file_path_oss"` // MinIO中的对象路径
	RawFileMD5          string    `json:"raw_file_md5,omitempty"` // 原始文件的MD5，用于失败时回滚

	// 上传时附带的身份提示，可为空
	NameHint  string `json:"name_hint,omitempty"`
	PhoneHint string `json:"phone_hint,omitempty"`
	EmailHint string `json:"email_hint,omitempty"`
}

// Valid reports whether the message carries enough to be processed.
func (m DocumentUploadMessage) Valid() bool {
	return m.SubmissionUUID != "" && m.OriginalFilePathOSS != "" && m.OriginalFilename != ""
}
