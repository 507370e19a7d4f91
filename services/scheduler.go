// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// KeeperSender is the caller recorded on locks issued by the deadline keeper.
const KeeperSender = "keeper"

// StartDeadlineKeeper locks tournaments whose registration deadline passed
// or whose bracket filled. Tournaments also lock lazily on the next advance,
// so the keeper only makes that happen sooner.
func (s *LedgerService) StartDeadlineKeeper(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			locked, err := s.LockDue(s.Now(), KeeperSender)
			if err != nil {
				log.Printf("[Keeper] Lock error: %v", err)
			}
			for _, id := range locked {
				log.Printf("✅ [Keeper] Locked tournament %d", id)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
