package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"packetlens/internal/export"
	"packetlens/internal/flowstore"
	"packetlens/internal/ipc"
	"packetlens/internal/logger"
	"packetlens/internal/match"
	"packetlens/pkg/model"
)

const version = "0.3.0"

var (
	ipcPort  int
	logLevel string
)

// newClient 按全局参数创建 IPC 客户端
func newClient() *ipc.Client {
	log := logger.New(logger.Options{Level: logLevel, Writer: []string{"console"}})
	return ipc.New(ipcPort, log)
}

// waitForStatus 监听事件流直到出现 status/error 事件或超时
func waitForStatus(c *ipc.Client, timeout time.Duration) (model.Event, error) {
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return model.Event{}, fmt.Errorf("event stream closed")
			}
			if ev.Type == model.EventStatus || ev.Type == model.EventError {
				return ev, nil
			}
		case <-deadline:
			return model.Event{}, fmt.Errorf("no status event within %s", timeout)
		}
	}
}

func printStatus(ev model.Event) {
	if ev.Type == model.EventError {
		fmt.Printf("error: %s\n", ev.Message)
		return
	}
	fmt.Printf("state: %s\n", ev.Status)
	if ev.Port != nil {
		fmt.Printf("port: %d\n", *ev.Port)
	}
	if ev.Message != "" {
		fmt.Printf("message: %s\n", ev.Message)
	}
}

func newStartCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "启动抓包代理",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()
			c.Listen()
			if err := c.Start(port); err != nil {
				return err
			}
			ev, err := waitForStatus(c, 15*time.Second)
			if err != nil {
				return err
			}
			printStatus(ev)
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "代理监听端口")
	return cmd
}

func newSimpleCmd(use, short string, send func(*ipc.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()
			return send(c)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "查询引擎当前状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()
			c.Listen()
			// 引擎在事件流建连后回送一条当前状态
			ev, err := waitForStatus(c, 5*time.Second)
			if err != nil {
				return err
			}
			printStatus(ev)
			return nil
		},
	}
}

func newTailCmd() *cobra.Command {
	var (
		filter  string
		outPath string
		asHAR   bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "实时打印捕获的流量，Ctrl-C 结束",
		Long:  "连接引擎事件流并逐条打印捕获记录。指定 --out 时退出前把缓存的记录写入文件。",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()
			c.Listen()

			store := flowstore.New(limit)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		loop:
			for {
				select {
				case <-sig:
					break loop
				case ev, ok := <-c.Events():
					if !ok {
						break loop
					}
					switch ev.Type {
					case model.EventFlow:
						if ev.Record == nil {
							continue
						}
						rec := *ev.Record
						if filter != "" && !match.Matches(rec.URL, filter) &&
							!match.Matches(rec.Method, filter) && !match.Matches(rec.Host, filter) {
							continue
						}
						store.Append(rec)
						status := "-"
						if rec.Error != "" {
							status = "ERR"
						} else if rec.StatusCode > 0 {
							status = fmt.Sprintf("%d", rec.StatusCode)
						}
						fmt.Printf("%s %-7s %s (%d ms)\n", status, rec.Method, rec.URL, rec.DurationMS)
					case model.EventError:
						fmt.Fprintf(os.Stderr, "engine error: %s\n", ev.Message)
					case model.EventStatus:
						if ev.Status == model.StateStopped {
							fmt.Fprintln(os.Stderr, "engine stopped")
						}
					}
				}
			}

			if outPath == "" {
				return nil
			}
			var data []byte
			var err error
			if asHAR {
				data, err = export.ExportHAR(store.All(), version)
			} else {
				data, err = export.ExportNative(store.All())
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %d records to %s\n", store.Len(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "过滤表达式，% 为通配符")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "退出时写入记录的文件路径")
	cmd.Flags().BoolVar(&asHAR, "har", false, "以 HAR 1.2 格式写出")
	cmd.Flags().IntVar(&limit, "limit", 5000, "内存中保留的最大记录数")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "lensctl",
		Short:   "PacketLens 抓包引擎命令行控制工具",
		Version: version,
	}
	rootCmd.PersistentFlags().IntVar(&ipcPort, "ipc-port", 8787, "引擎 IPC 端口")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别")

	rootCmd.AddCommand(
		newStartCmd(),
		newSimpleCmd("stop", "停止抓包代理", func(c *ipc.Client) error { return c.Stop() }),
		newSimpleCmd("pause", "暂停抓包", func(c *ipc.Client) error { return c.Pause() }),
		newSimpleCmd("resume", "恢复抓包", func(c *ipc.Client) error { return c.Resume() }),
		newStatusCmd(),
		newTailCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
