package jobs

import (
	"github.com/sirupsen/logrus"

	"livesync/internal/model"
)

type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event 任务事件快照
type Event struct {
	Type       EventType       `json:"event"`
	JobID      string          `json:"job_id"`
	ConfigName string          `json:"config_name"`
	Status     model.JobStatus `json:"status"`
	Total      int             `json:"total"`
	Processed  int             `json:"processed"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Percent    float64         `json:"percent"`
	Error      string          `json:"error,omitempty"`
}

func snapshot(t EventType, job *model.Job) Event {
	return Event{
		Type:       t,
		JobID:      job.ID,
		ConfigName: job.ConfigName,
		Status:     job.Status,
		Total:      job.Total,
		Processed:  job.Processed,
		Succeeded:  job.Succeeded,
		Failed:     job.Failed,
		Percent:    job.Percent(),
		Error:      job.Error,
	}
}

// Observer 任务观察者接口
type Observer interface {
	OnJobStart(job *model.Job)
	OnJobProgress(job *model.Job)
	OnJobComplete(job *model.Job)
	OnJobError(job *model.Job, err error)
}

// LogObserver 将任务生命周期写入日志
type LogObserver struct {
	Logger logrus.FieldLogger
}

func (o *LogObserver) fields(job *model.Job) logrus.FieldLogger {
	return o.Logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"config": job.ConfigName,
	})
}

func (o *LogObserver) OnJobStart(job *model.Job) {
	o.fields(job).WithField("total", job.Total).Info("开始批量同步")
}

func (o *LogObserver) OnJobProgress(job *model.Job) {
	o.fields(job).WithFields(logrus.Fields{
		"processed": job.Processed,
		"failed":    job.Failed,
	}).Debugf("批量同步进度 %.0f%%", job.Percent())
}

func (o *LogObserver) OnJobComplete(job *model.Job) {
	o.fields(job).WithFields(logrus.Fields{
		"processed": job.Processed,
		"succeeded": job.Succeeded,
		"failed":    job.Failed,
	}).Info("批量同步完成")
}

func (o *LogObserver) OnJobError(job *model.Job, err error) {
	o.fields(job).WithError(err).Error("批量同步失败")
}
