package constants

const (
	CHANNEL_SIZE        = 256  // 单个连接出站缓冲大小
	HISTORY_PAGE_SIZE   = 50   // 加入会话/课程群时回放的最近消息条数
	HISTORY_PAGE_MAX    = 200  // 历史分页单页上限
	TYPING_QUIET_MILLIS = 2000 // 正在输入的静默超时（毫秒）
	MAX_CONTENT_LENGTH  = 4000 // 单条消息最大字符数
	PREVIEW_LENGTH      = 100  // 会话列表最后一条消息预览的最大字符数
	SEEN_WINDOW         = 512  // 每个连接每个容器记住的已投递消息 ID 数，需大于 HISTORY_PAGE_MAX
	WORKER_NUM          = 8    // 异步任务 worker 数
	WORKER_QUEUE_SIZE   = 1024 // 异步任务队列长度
	UNREAD_KEY_PREFIX   = "unread:"
	CONN_ID_PREFIX      = "W"
	CONVERSATION_PREFIX = "C"
	ROOM_PREFIX         = "R"
)
