package mailer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/rrrrrr/school-system/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var roleLabels = map[string]string{
	string(domain.RoleAdmin):   "系统管理员",
	string(domain.RoleStudent): "学生",
	string(domain.RoleStaff):   "教职员",
	string(domain.RoleHR):      "人事人员",
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"roleLabel": func(role any) string {
		s := fmt.Sprint(role)
		if label, ok := roleLabels[s]; ok {
			return label
		}
		return s
	},
}).ParseFS(templateFS, "templates/*.html"))

type mailKind struct {
	subject  string
	template string
}

var kinds = map[string]mailKind{
	domain.MailTypeWelcome: {subject: "校园管理系统 - 注册成功", template: "welcome.html"},
}

var ErrUnsupportedType = errors.New("不支持的邮件类型")

// Decode 解析队列中的消息体，Data 字段解码为 map[string]any
func Decode(body []byte) (domain.MailMessage, error) {
	var msg domain.MailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, err
	}
	if msg.Type == "" || msg.To == "" {
		return msg, errors.New("邮件消息缺少 type 或 to 字段")
	}
	return msg, nil
}

// BuildMsg 根据邮件类型选择模板并构建待发送的邮件
func BuildMsg(from string, m domain.MailMessage) (*mail.Msg, error) {
	kind, ok := kinds[m.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, m.Type)
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	if err := msg.SetBodyHTMLTemplate(templates.Lookup(kind.template), m.Data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	msg.Subject(kind.subject)

	return msg, nil
}
