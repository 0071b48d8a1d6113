// Package tools exposes the bot's chat commands as MCP tools.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/bot"
	"github.com/RobinCoderZhao/morning-news/pkg/mcpserver"
)

// Bot is the part of *bot.Bot the tools drive.
type Bot interface {
	Status(now time.Time) string
	Prepare(ctx context.Context, withText bool) (*bot.Edition, error)
	Manual(ctx context.Context, origin string, mode bot.Mode) error
	SendTest(ctx context.Context) (string, error)
}

var originSchema = map[string]any{
	"type":        "string",
	"description": "会话标识，格式 platform:kind:id，例如 telegram:GroupMessage:-100123",
}

// Register adds the news tools to s.
func Register(s *mcpserver.Server, b Bot, now func() time.Time) {
	if now == nil {
		now = time.Now
	}

	s.RegisterTools(
		&mcpserver.FuncTool{
			BaseTool: mcpserver.BaseTool{
				ToolName:        "news_status",
				ToolDescription: "查看每日60s早报的推送配置、定时任务状态和距离下次推送的时间",
			},
			Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
				return mcpserver.TextResult(b.Status(now())), nil
			},
		},
		&mcpserver.FuncTool{
			BaseTool: mcpserver.BaseTool{
				ToolName:        "news_today",
				ToolDescription: "获取今日早报，返回文本摘要；image 为 true 时附带 PNG 图片",
				ToolSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"image": map[string]any{"type": "boolean", "description": "附带早报图片"},
					},
				},
			},
			Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
				withImage, _ := args["image"].(bool)
				ed, err := b.Prepare(ctx, true)
				if err != nil {
					return nil, err
				}
				result := mcpserver.TextResult(ed.Text)
				if withImage {
					result.Content = append(result.Content, mcpserver.ImageResult(ed.ImageBase64, "image/png").Content...)
				}
				return result, nil
			},
		},
		&mcpserver.FuncTool{
			BaseTool: mcpserver.BaseTool{
				ToolName:        "news_config_help",
				ToolDescription: "说明如何把指定会话配置为推送目标",
				ToolSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"origin": originSchema},
					"required":   []string{"origin"},
				},
			},
			Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
				origin, err := mcpserver.StringArg(args, "origin", true)
				if err != nil {
					return nil, err
				}
				return mcpserver.TextResult(bot.ConfigHelp(origin)), nil
			},
		},
		&mcpserver.FuncTool{
			BaseTool: mcpserver.BaseTool{
				ToolName:        "news_send",
				ToolDescription: "把今日早报发送到指定会话；mode 为 image、text 或 all（默认）",
				ToolSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"origin": originSchema,
						"mode":   map[string]any{"type": "string", "enum": []string{"image", "text", "all"}},
					},
					"required": []string{"origin"},
				},
			},
			Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
				origin, err := mcpserver.StringArg(args, "origin", true)
				if err != nil {
					return nil, err
				}
				modeArg, err := mcpserver.StringArg(args, "mode", false)
				if err != nil {
					return nil, err
				}
				mode, err := bot.ParseMode(modeArg)
				if err != nil {
					return nil, err
				}
				if err := b.Manual(ctx, origin, mode); err != nil {
					return nil, fmt.Errorf("send to %s: %w", origin, err)
				}
				return mcpserver.TextResult(fmt.Sprintf("✅ 已发送到 %s (%s)", origin, mode)), nil
			},
		},
		&mcpserver.FuncTool{
			BaseTool: mcpserver.BaseTool{
				ToolName:        "news_test",
				ToolDescription: "向所有目标群组发送今日早报图片并报告每个群组的结果",
			},
			Fn: func(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
				out, err := b.SendTest(ctx)
				if err != nil && out == "" {
					return nil, err
				}
				result := mcpserver.TextResult(out)
				result.IsError = err != nil
				return result, nil
			},
		},
	)
}
