package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"livesync/internal/jobs"
	"livesync/internal/model"
	"livesync/internal/schema"
)

var (
	reportFile string

	filterField string
	filterValue string
	bulkLimit   int
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a Live Sync definition file without saving it",
	Long: `Validate a Live Sync definition (name, source_type, target_type, config)
against the record-type metadata in the database. Nothing is written.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("读取文件失败: %v", err)
		}
		var ls model.LiveSync
		if err := json.Unmarshal(data, &ls); err != nil {
			log.Fatalf("解析 Live Sync 定义失败: %v", err)
		}

		a := newApp()
		defer a.close()

		report, err := a.service.ValidateConfig(context.Background(), &ls)
		var verr *schema.ValidationError
		if err != nil && !errors.As(err, &verr) {
			a.close()
			log.Fatalf("配置无效: %v", err)
		}
		if !writeReport(report) {
			a.close()
			os.Exit(1)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [name]",
	Short: "Check stored configurations against record-type metadata",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newApp()
		defer a.close()

		var names []string
		if len(args) == 1 {
			names = args
		} else {
			all, err := a.service.ListConfigs(ctx)
			if err != nil {
				a.close()
				log.Fatalf("读取配置列表失败: %v", err)
			}
			for _, ls := range all {
				names = append(names, ls.Name)
			}
		}

		invalid := 0
		for _, name := range names {
			report, err := a.service.CheckConfig(ctx, name)
			if err != nil {
				log.Errorf("配置 %s 校验失败: %v", name, err)
				invalid++
				continue
			}
			if !writeReport(report) {
				invalid++
			}
		}
		log.Infof("共校验 %d 个配置，%d 个无效", len(names), invalid)
		if invalid > 0 {
			a.close()
			os.Exit(1)
		}
	},
}

var testCmd = &cobra.Command{
	Use:   "test <name> [source]",
	Short: "Dry-run a configuration and print the mapping preview",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		source := ""
		if len(args) == 2 {
			source = args[1]
		}

		a := newApp()
		defer a.close()

		result, err := a.service.TestSync(context.Background(), args[0], source)
		if err != nil {
			a.close()
			log.Fatalf("试运行失败: %v", err)
		}
		printJSON(result)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <name> <source>",
	Short: "Sync a single source record",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp()
		defer a.close()

		result, err := a.service.RunSync(context.Background(), args[0], args[1])
		if result != nil {
			printJSON(result)
		}
		if err != nil {
			a.close()
			log.Fatalf("同步失败: %v", err)
		}
	},
}

var bulkCmd = &cobra.Command{
	Use:   "bulk <name>",
	Short: "Sync every source record matching a filter",
	Long: `Sync every source record matching --filter-field/--filter-value, up to
--limit records. Large batches run on the background runner; the command
waits for the job to finish.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newApp()
		defer a.close()
		a.start(ctx)

		events, unsubscribe := a.hub.Subscribe(256)
		defer unsubscribe()

		job, err := a.service.BulkSync(ctx, args[0], filterField, filterValue, bulkLimit)
		if err != nil {
			a.close()
			log.Fatalf("批量同步失败: %v", err)
		}

		if !job.Status.Terminal() {
			log.Infof("任务 %s 已提交，共 %d 条记录", job.ID, job.Total)
			waitForJob(ctx, a, events, job.ID)
			if job, err = a.service.JobStatus(ctx, job.ID); err != nil {
				a.close()
				log.Fatalf("读取任务状态失败: %v", err)
			}
		}
		printJSON(job)
	},
}

func init() {
	checkCmd.Flags().StringVarP(&reportFile, "output", "o", "", "将校验报告保存为 JSON 文件")
	validateCmd.Flags().StringVarP(&reportFile, "output", "o", "", "将校验报告保存为 JSON 文件 (多个配置时只保存最后一个)")

	bulkCmd.Flags().StringVar(&filterField, "filter-field", "", "过滤字段")
	bulkCmd.Flags().StringVar(&filterValue, "filter-value", "", "过滤值")
	bulkCmd.Flags().IntVar(&bulkLimit, "limit", 0, "最多同步的记录数 (0 表示使用 sync.max_bulk_limit)")
}

// waitForJob 打印进度直到任务结束。订阅者缓冲区满时事件会被丢弃，
// 所以同时定期查询任务状态。
func waitForJob(ctx context.Context, a *app, events <-chan jobs.Event, jobID string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.JobID != jobID {
				continue
			}
			if e.Type != jobs.EventProgress {
				return
			}
			log.Debugf("进度 %d/%d (%.0f%%)", e.Processed, e.Total, e.Percent)
		case <-ticker.C:
			job, err := a.service.JobStatus(ctx, jobID)
			if err == nil && job.Status.Terminal() {
				return
			}
		}
	}
}

// writeReport 输出校验报告，返回配置是否有效
func writeReport(report *schema.Report) bool {
	if err := report.WriteText(os.Stdout); err != nil {
		log.Warnf("输出报告失败: %v", err)
	}
	if reportFile != "" {
		if err := report.SaveJSON(reportFile); err != nil {
			log.Errorf("保存报告失败: %v", err)
		} else {
			log.Infof("校验报告已保存到 %s", reportFile)
		}
	}
	return report.Valid()
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Errorf("序列化输出失败: %v", err)
		return
	}
	fmt.Println(string(data))
}
