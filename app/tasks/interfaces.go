package tasks

// TaskSchedulerInterface is what main needs to run background rebuilds.
//
//	scheduler, err := NewScheduler("0 * * * *", pipeline)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
