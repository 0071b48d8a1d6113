package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/scheduler"
)

const rule = "━━━━━━━━━━━━━━━━━━━━"

// StatusInfo is the machine-readable bot status.
type StatusInfo struct {
	Targets           []string  `json:"targets"`
	PushTime          string    `json:"push_time"`
	ShowTextNews      bool      `json:"show_text_news"`
	UseLocalImageDraw bool      `json:"use_local_image_draw"`
	Running           bool      `json:"running"`
	Now               time.Time `json:"now"`
	NextRun           time.Time `json:"next_run"`
	UntilNext         string    `json:"until_next"`
	LastRun           time.Time `json:"last_run,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// Snapshot collects the status at now.
func (b *Bot) Snapshot(now time.Time) StatusInfo {
	st := b.sched.Status()
	info := StatusInfo{
		PushTime:          b.clock.String(),
		ShowTextNews:      b.cfg.ShowTextNews,
		UseLocalImageDraw: b.cfg.UseLocalImageDraw,
		Running:           st.Running,
		Now:               now,
		NextRun:           scheduler.NextRun(now, b.clock),
		UntilNext:         formatWait(scheduler.Until(now, b.clock)),
		LastRun:           st.LastRun,
	}
	for _, t := range b.targets {
		info.Targets = append(info.Targets, t.String())
	}
	if st.LastErr != nil {
		info.LastError = st.LastErr.Error()
	}
	if len(b.targets) == 0 {
		info.Warnings = append(info.Warnings, "未配置目标群组，定时推送无法工作！")
	}
	if !st.Running {
		info.Warnings = append(info.Warnings, "定时任务未运行，请重启服务！")
	}
	return info
}

// Status renders the status block sent in reply to the status command.
func (b *Bot) Status(now time.Time) string {
	info := b.Snapshot(now)

	targets := "未配置"
	if len(info.Targets) > 0 {
		targets = strings.Join(info.Targets, ", ")
	}

	var sb strings.Builder
	sb.WriteString("每日60s早报状态\n")
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("目标群组: %s\n", targets))
	sb.WriteString(fmt.Sprintf("推送时间: %s\n", info.PushTime))
	sb.WriteString(fmt.Sprintf("文本早报显示: %s\n", onOff(info.ShowTextNews, "开启", "关闭")))
	sb.WriteString(fmt.Sprintf("使用本地图片绘制: %s\n", onOff(info.UseLocalImageDraw, "是", "否")))
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("定时任务状态: %s\n", onOff(info.Running, "运行中", "已停止")))
	sb.WriteString(fmt.Sprintf("当前时间: %s\n", now.Format(time.DateTime)))
	sb.WriteString(fmt.Sprintf("距离下次推送: %s\n", info.UntilNext))
	if !info.LastRun.IsZero() {
		result := "成功"
		if info.LastError != "" {
			result = "失败: " + info.LastError
		}
		sb.WriteString(fmt.Sprintf("上次推送: %s (%s)\n", info.LastRun.Format(time.DateTime), result))
	}
	for _, w := range info.Warnings {
		sb.WriteString("\n⚠️ 警告: " + w)
	}
	return sb.String()
}

// ConfigHelp explains how to configure the conversation identified by
// origin as a push target.
func ConfigHelp(origin string) string {
	parts := strings.Split(strings.TrimSpace(origin), ":")
	if len(parts) != 3 {
		return fmt.Sprintf("当前消息来源格式异常: %s\n无法解析为 '前缀:中缀:后缀' 格式", origin)
	}

	var sb strings.Builder
	sb.WriteString("配置格式: \n")
	sb.WriteString(fmt.Sprintf("前缀: %s\n", parts[0]))
	sb.WriteString(fmt.Sprintf("中缀: %s\n", parts[1]))
	sb.WriteString(fmt.Sprintf("后缀: %s\n", parts[2]))
	sb.WriteString(rule + "\n")
	sb.WriteString("💡 完整配置提示:\n")
	sb.WriteString("请在 target_groups 中使用以下格式:\n")
	sb.WriteString(strings.TrimSpace(origin) + "\n")
	sb.WriteString(rule + "\n")
	sb.WriteString("⚠️ 注意:\n")
	sb.WriteString("前缀是消息平台的名称 (如 telegram、webhook、email)，\n")
	sb.WriteString("未注册的平台会经由 webhook 转发。\n")
	return sb.String()
}

func formatWait(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%d小时%d分钟", h, m)
}

func onOff(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
