package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
)

const sweepBatchSize = 100

// Sweeper — фоновый цикл дедлайнов: автоотпуск оплаченных сделок,
// закрытие просроченных отсчётов и толеранс-окон заливов.
type Sweeper struct {
	orders   *OrderService
	loaders  *LoaderService
	interval time.Duration
}

func NewSweeper(orders *OrderService, loaders *LoaderService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{orders: orders, loaders: loaders, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logrus.WithField("interval", s.interval.String()).Info("Свип дедлайнов запущен")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Свип дедлайнов остановлен")
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	released := s.sweepAutoRelease(now)
	expired := s.sweepCountdowns(now)
	tolerances := s.sweepTolerances(now)
	if released+expired+tolerances > 0 {
		logrus.WithFields(logrus.Fields{
			"auto_released":      released,
			"countdown_expired":  expired,
			"tolerance_expired":  tolerances,
		}).Info("Свип обработал просроченные заявки")
	}
}

func (s *Sweeper) sweepAutoRelease(now time.Time) int {
	orders, err := s.orders.ListAutoReleasable(now, sweepBatchSize)
	if err != nil {
		logrus.Errorf("свип: выборка заявок на автоотпуск: %s", err.Error())
		return 0
	}
	done := 0
	for _, o := range orders {
		if _, err := s.orders.AutoRelease(o); err != nil {
			// Гонка со свежим подтверждением покупателя — не ошибка.
			if errors.Is(err, models.ErrInvalidStateTransition) {
				continue
			}
			logrus.Errorf("свип: автоотпуск заявки %d: %s", o.ID, err.Error())
			continue
		}
		done++
	}
	return done
}

func (s *Sweeper) sweepCountdowns(now time.Time) int {
	orders, err := s.loaders.ListCountdownExpired(now, sweepBatchSize)
	if err != nil {
		logrus.Errorf("свип: выборка просроченных отсчётов: %s", err.Error())
		return 0
	}
	done := 0
	for _, o := range orders {
		if err := s.loaders.ExpireCountdown(o); err != nil {
			if errors.Is(err, models.ErrInvalidStateTransition) {
				continue
			}
			logrus.Errorf("свип: закрытие залива %d по отсчёту: %s", o.ID, err.Error())
			continue
		}
		done++
	}
	return done
}

func (s *Sweeper) sweepTolerances(now time.Time) int {
	orders, err := s.loaders.ListToleranceExpired(now, sweepBatchSize)
	if err != nil {
		logrus.Errorf("свип: выборка просроченных толеранс-окон: %s", err.Error())
		return 0
	}
	done := 0
	for _, o := range orders {
		if err := s.loaders.ExpireTolerance(o); err != nil {
			if errors.Is(err, models.ErrInvalidStateTransition) {
				continue
			}
			logrus.Errorf("свип: закрытие залива %d по толерансу: %s", o.ID, err.Error())
			continue
		}
		done++
	}
	return done
}
