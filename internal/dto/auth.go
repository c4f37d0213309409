package dto

// ── 认证模块请求 ──

// TelegramLoginRequest Telegram Web App 登录请求
// InitData 为 Telegram 客户端注入的原始 initData 查询串
type TelegramLoginRequest struct {
	InitData string `json:"init_data" binding:"required,max=4096"`
}
