// Package i18n 提供国际化支持
// 负责管理错误消息的语言包和翻译功能
package i18n

import (
	"strings"
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包存储
	translations = map[string]map[string]string{
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"unauthorized":          "未授权",
			"forbidden":             "禁止访问",
			"not_found":             "资源未找到",
			"conflict":              "资源冲突",
			"too_many_requests":     "请求过于频繁",
			"service_unavailable":   "服务不可用",

			"share_not_found":         "分享不存在或已失效",
			"share_alias_taken":       "别名已被占用",
			"share_alias_invalid":     "别名不合法",
			"share_alias_exhausted":   "无法分配可用别名",
			"share_password_invalid":  "分享密码错误",
			"share_file_too_large":    "文件大小超限",
			"share_file_type_invalid": "文件类型不允许",
			"share_file_missing":      "缺少上传文件",
			"share_email_required":    "缺少邮箱参数",

			"content_write_failed":         "内容写入失败",
			"content_read_failed":          "内容读取失败",
			"content_delete_failed":        "内容删除失败",
			"content_provider_unsupported": "存储提供商不支持",

			"database_connection": "数据库连接错误",
			"database_query":      "数据库查询错误",
			"database_insert":     "数据库插入错误",
			"database_update":     "数据库更新错误",
			"database_delete":     "数据库删除错误",
			"database_timeout":    "数据库操作超时",

			"auth_token_invalid":       "身份令牌无效",
			"auth_token_missing":       "缺少身份令牌",
			"auth_credentials_invalid": "用户名或密码错误",
			"auth_user_exists":         "用户名或邮箱已注册",

			"unknown_error": "未知错误",
		},
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Unauthorized",
			"forbidden":             "Forbidden",
			"not_found":             "Resource Not Found",
			"conflict":              "Conflict",
			"too_many_requests":     "Too Many Requests",
			"service_unavailable":   "Service Unavailable",

			"share_not_found":         "Share Not Found Or Expired",
			"share_alias_taken":       "Alias Already Taken",
			"share_alias_invalid":     "Invalid Alias",
			"share_alias_exhausted":   "Alias Allocation Exhausted",
			"share_password_invalid":  "Invalid Share Password",
			"share_file_too_large":    "File Size Too Large",
			"share_file_type_invalid": "File Type Not Allowed",
			"share_file_missing":      "No File Uploaded",
			"share_email_required":    "Email Is Required",

			"content_write_failed":         "Content Write Failed",
			"content_read_failed":          "Content Read Failed",
			"content_delete_failed":        "Content Delete Failed",
			"content_provider_unsupported": "Storage Provider Not Supported",

			"database_connection": "Database Connection Error",
			"database_query":      "Database Query Error",
			"database_insert":     "Database Insert Error",
			"database_update":     "Database Update Error",
			"database_delete":     "Database Delete Error",
			"database_timeout":    "Database Operation Timed Out",

			"auth_token_invalid":       "Invalid Token",
			"auth_token_missing":       "Missing Token",
			"auth_credentials_invalid": "Invalid Username Or Password",
			"auth_user_exists":         "Username Or Email Already Registered",

			"unknown_error": "Unknown Error",
		},
	}

	// locale库标识符到本服务语言代码的映射
	langMappings = map[string]string{
		LangZhCN: "zh",
		LangEnUS: "en_US",
	}
)

// I18n 国际化管理器
type I18n struct {
	uni         *ut.UniversalTranslator
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangZhCN,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器
func (i *I18n) initTranslators() {
	zhCN := zh.New()
	enUS := en_US.New()
	i.uni = ut.New(zhCN, enUS, zhCN)

	for ourLang, localeLang := range langMappings {
		trans, found := i.uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("初始化翻译器失败 for language %s (locale: %s): translator not found", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}

	logger.Debug("国际化翻译器初始化完成")
}

// Translate 根据键和语言获取翻译
func (i *I18n) Translate(key, lang string) string {
	if _, exists := i.translators[lang]; !exists {
		lang = i.defaultLang
	}

	if translation, found := translations[lang][key]; found {
		return translation
	}

	if lang != i.defaultLang {
		if translation, found := translations[i.defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// Negotiate 根据 Accept-Language 请求头选择语言
// 参数:
//   - header: Accept-Language 原始值，例如 "en-US,en;q=0.9"
//
// 返回值:
//   - string: 支持的语言代码，无法匹配时返回默认语言
func (i *I18n) Negotiate(header string) string {
	if header == "" {
		return i.defaultLang
	}

	candidates := make([]string, 0, 4)
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		candidates = append(candidates, strings.ReplaceAll(tag, "-", "_"))
		// 按主语言回退，例如 zh-TW -> zh, en -> en_US
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		candidates = append(candidates, base)
		if base == "en" {
			candidates = append(candidates, "en_US")
		}
	}

	trans, found := i.uni.FindTranslator(candidates...)
	if !found {
		return i.defaultLang
	}
	for ourLang, localeLang := range langMappings {
		if trans.Locale() == localeLang {
			return ourLang
		}
	}
	return i.defaultLang
}

// SetDefaultLanguage 设置默认语言
func (i *I18n) SetDefaultLanguage(lang string) {
	i.defaultLang = lang
	logger.Infof("设置默认语言为: %s", lang)
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}
