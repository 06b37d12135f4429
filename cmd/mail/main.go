package main

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/groundops/staff-sizer/backend/internal/config"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

type mailTemplate struct {
	file    string
	subject string
	tmpl    *template.Template
}

// 模板中的字段名与消息 JSON 中的字段名一致，例如 {{.fullName}}
var mailTemplates = map[string]*mailTemplate{
	domain.MailTypeCreateUser:      {file: "new_account_email.html", subject: "地勤排班测算系统 - 账户信息"},
	domain.MailTypeResetPassword:   {file: "reset_password_otp_email.html", subject: "地勤排班测算系统 - 重置密码"},
	domain.MailTypeSizingCompleted: {file: "sizing_completed_email.html", subject: "地勤排班测算系统 - 测算完成"},
}

func loadTemplates(dir string) error {
	for _, mt := range mailTemplates {
		tmpl, err := template.ParseFiles(filepath.Join(dir, mt.file))
		if err != nil {
			return err
		}
		mt.tmpl = tmpl
	}
	return nil
}

// buildMessage 根据消息类型渲染邮件，返回的错误都是不可重试的
func buildMessage(from string, m *domain.MailMessage) (*mail.Msg, error) {
	mt, ok := mailTemplates[m.Type]
	if !ok {
		return nil, &unsupportedTypeError{m.Type}
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, err
	}
	if err := msg.To(m.To); err != nil {
		return nil, err
	}
	if err := msg.SetBodyHTMLTemplate(mt.tmpl, m.Data); err != nil {
		return nil, err
	}
	msg.Subject(mt.subject)

	return msg, nil
}

type unsupportedTypeError struct {
	mailType string
}

func (e *unsupportedTypeError) Error() string {
	return "不支持的邮件类型: " + e.mailType
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", "error", err)
		return
	}

	if err := loadTemplates("./templates"); err != nil {
		logger.Error("无法解析邮件模板", "error", err)
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", "error", err)
		return
	}
	defer client.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer dialCancel()
	if err := client.DialWithContext(dialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", "error", err)
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", "error", err)
		return
	}
	defer ch.Close()

	// 参数需要和 api 服务中声明的队列保持一致
	q, err := ch.QueueDeclare("email_queue", true, false, false, false, nil)
	if err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	// 一次只处理一封邮件
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}

				m := domain.MailMessage{}
				if err := json.Unmarshal(d.Body, &m); err != nil {
					logger.Error("邮件信息反序列化失败", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				// 不记录消息体，其中可能包含初始密码和验证码
				logger.Info("收到消息", "type", m.Type, "to", m.To)

				msg, err := buildMessage(cfg.Email.SMTP.Username, &m)
				if err != nil {
					logger.Error("无法构建邮件", "type", m.Type, "error", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := client.DialAndSendWithContext(ctx, msg); err != nil {
					logger.Error("邮件发送失败", "type", m.Type, "error", err)
					_ = d.Nack(false, true) // 重新入队
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 mail worker...")
	cancel()
	wg.Wait()
	logger.Info("mail worker 已成功关闭")
}
