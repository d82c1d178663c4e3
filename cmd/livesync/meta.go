package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"livesync/internal/model"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Manage record-type metadata",
}

var metaImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import record-type metadata from a JSON array",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("读取文件失败: %v", err)
		}
		var metas []model.RecordTypeMeta
		if err := json.Unmarshal(data, &metas); err != nil {
			log.Fatalf("解析元数据失败: %v", err)
		}

		a := newApp()
		defer a.close()

		ctx := context.Background()
		for i := range metas {
			if err := a.store.SaveMeta(ctx, &metas[i]); err != nil {
				a.close()
				log.Fatalf("保存记录类型 %s 失败: %v", metas[i].Name, err)
			}
			log.Infof("已导入记录类型 %s (%d 个字段)", metas[i].Name, len(metas[i].Fields))
		}
	},
}

var metaShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Print the metadata of a record type",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp()
		defer a.close()

		meta, err := a.store.Meta(context.Background(), args[0])
		if err != nil {
			a.close()
			log.Fatalf("读取元数据失败: %v", err)
		}
		printJSON(meta)
	},
}

func init() {
	metaCmd.AddCommand(metaImportCmd, metaShowCmd)
}
