// Morning News: daily "60s" digest renderer and push bot
//
// Usage:
//
//	morningnews serve              # 定时推送 + HTTP 控制接口
//	morningnews run                # 立即推送一次
//	morningnews render --out a.png # 本地绘制早报图片
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/morning-news/internal/api"
	"github.com/RobinCoderZhao/morning-news/internal/morningnews/bot"
	"github.com/RobinCoderZhao/morning-news/internal/morningnews/tools"
	"github.com/RobinCoderZhao/morning-news/pkg/dailynews"
	"github.com/RobinCoderZhao/morning-news/pkg/mcpserver"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "morningnews",
		Short:        "Daily 60s news image renderer and push bot",
		Long:         "每日60秒早报：获取当日新闻，绘制早报图片并定时推送到配置的群组。",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "配置文件路径")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(sendCmd(&configPath))
	root.AddCommand(testCmd(&configPath))
	root.AddCommand(renderCmd(&configPath))
	root.AddCommand(statusCmd(&configPath))
	root.AddCommand(configHelpCmd())
	root.AddCommand(tokenCmd(&configPath))
	root.AddCommand(mcpCmd(&configPath))
	root.AddCommand(versionCmd())
	return root
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "立即推送一次今日早报",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			report, err := a.bot.Push(ctx)
			fmt.Printf("📤 推送完成: %d/%d\n", report.Sent, report.Total)
			for _, res := range report.Failed() {
				fmt.Printf("❌ %s: %v\n", res.Target, res.Err)
			}
			return err
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "运行定时推送和 HTTP 控制接口",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			if a.cfg.UseLocalImageDraw {
				if err := dailynews.NewFontLoader(a.cfg.Fonts).Check(); err != nil {
					slog.Warn("font check failed; local rendering will fail until fonts are installed", "error", err)
				}
			}
			return serve(cmd.Context(), a)
		},
	}
}

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.bot.Start(ctx)
	}()

	apiServer := api.NewServer(a.bot, a.cfg.API.JWTSecret)
	apiServer.MountProtected("POST /mcp", newMCPServer(a).Handler())
	srv := &http.Server{
		Addr:              a.cfg.API.Addr,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
		slog.Error("server failed", "error", serveErr)
		stop()
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	<-done
	return serveErr
}

func sendCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send <platform:kind:id> [image|text|all]",
		Short: "把今日早报发送到指定会话",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeArg := ""
			if len(args) == 2 {
				modeArg = args[1]
			}
			mode, err := bot.ParseMode(modeArg)
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			if err := a.bot.Manual(ctx, args[0], mode); err != nil {
				return fmt.Errorf("send to %s: %w", args[0], err)
			}
			fmt.Printf("✅ 已发送到 %s (%s)\n", args[0], mode)
			return nil
		},
	}
}

func testCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "向所有目标群组发送测试图片",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()
			out, err := a.bot.SendTest(ctx)
			fmt.Println(out)
			return err
		},
	}
}

func renderCmd(configPath *string) *cobra.Command {
	var input, out string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "本地绘制早报图片",
		Long:  "从 JSON 文件（API 响应或 data 对象）读取早报并绘制为 PNG；未指定 --input 时从 API 获取。",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}

			var d *dailynews.Digest
			if input != "" {
				data, err := os.ReadFile(input)
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				rec, err := parseRecord(data)
				if err != nil {
					return err
				}
				if d, err = dailynews.NewDigest(*rec); err != nil {
					return err
				}
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				if _, d, err = a.fetcher.FetchDigest(ctx); err != nil {
					return err
				}
			}

			rendered, err := a.renderer.Render(d)
			if err != nil {
				return err
			}
			png, err := rendered.PNG()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			fmt.Printf("🖼  %s (%dx%d, %d bytes)\n", out, rendered.Width, rendered.Height, len(png))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "早报 JSON 文件")
	cmd.Flags().StringVarP(&out, "out", "o", "news.png", "输出 PNG 路径")
	return cmd
}

// parseRecord accepts either a full API response or its bare data object.
func parseRecord(data []byte) (*dailynews.Record, error) {
	var env struct {
		Data *dailynews.Record `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if env.Data != nil {
		return env.Data, nil
	}
	var rec dailynews.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

func statusCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "显示推送配置与下次推送时间",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			now := time.Now()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(a.bot.Snapshot(now))
			}
			fmt.Println(a.bot.Status(now))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "输出 JSON 格式")
	return cmd
}

func configHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-help <origin>",
		Short: "说明如何把会话配置为推送目标",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(bot.ConfigHelp(args[0]))
		},
	}
}

func tokenCmd(configPath *string) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发 HTTP 接口的访问令牌",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			token, err := api.GenerateToken(cfg.API.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "令牌主体")
	cmd.Flags().DurationVar(&ttl, "ttl", api.DefaultTokenTTL, "有效期")
	return cmd
}

func newMCPServer(a *app) *mcpserver.Server {
	s := mcpserver.New("morningnews", version)
	s.Use(mcpserver.RecoveryMiddleware(slog.Default()))
	s.Use(mcpserver.LoggingMiddleware(slog.Default()))
	tools.Register(s, a.bot, time.Now)
	return s
}

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "通过 stdio 提供 MCP 工具（状态、今日早报、发送、测试）",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return newMCPServer(a).Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("morningnews %s\n", version)
		},
	}
}
