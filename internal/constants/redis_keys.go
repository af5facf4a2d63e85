package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: ats:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "ats"

	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityMD5ToRecord MD5到记录键的映射实体
	EntityMD5ToRecord = "md5_to_record"

	// KeyFileMD5ToRecord MD5到提交UUID或记录键的映射 (STRING)，
	// 每个MD5独立过期，键存在即表示该文件已登记
	// 格式: ats:file:md5_to_record:{md5}
	KeyFileMD5ToRecord = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToRecord + ":%s"
)
