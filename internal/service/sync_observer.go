package service

import (
	"github.com/sirupsen/logrus"
)

// LogObserver 将同步过程写入日志
type LogObserver struct {
	Logger logrus.FieldLogger
}

func (o *LogObserver) fields(task *SyncTask) logrus.FieldLogger {
	return o.Logger.WithFields(logrus.Fields{
		"config":    task.ConfigName,
		"direction": task.Direction(),
		"source":    task.SourceType + "/" + task.SourceName,
	})
}

func (o *LogObserver) OnSyncStart(task *SyncTask) {
	o.fields(task).Debugf("开始同步 %s -> %s", task.SourceType, task.TargetType)
}

func (o *LogObserver) OnSyncComplete(task *SyncTask, result *Result) {
	o.fields(task).WithFields(logrus.Fields{
		"action": result.Action,
		"target": result.TargetName,
	}).Infof("同步完成 %s -> %s", task.SourceType, task.TargetType)
}

func (o *LogObserver) OnSyncError(task *SyncTask, err error) {
	o.fields(task).WithError(err).Errorf("同步错误 %s -> %s", task.SourceType, task.TargetType)
}
