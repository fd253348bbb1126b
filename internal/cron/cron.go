package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	services *service.Services
	families *repository.FallbackFamilyStore
}

// NewScheduler creates a new scheduler
func NewScheduler(services *service.Services, families *repository.FallbackFamilyStore) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		services: services,
		families: families,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Hourly sweep converging stored invitation state with lazy expiry.
	s.cron.AddFunc("0 * * * *", func() {
		log.Println("[Cron] Running invitation expiry sweep...")
		s.expireInvitations()
	})

	// Flush memory-resident groups back to the durable store.
	s.cron.AddFunc("*/5 * * * *", func() {
		s.reconcileFamilies()
	})

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Cron] Scheduler stopped")
}

func (s *Scheduler) expireInvitations() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := s.services.Families.ExpireOverdueInvitations(ctx)
	if err != nil {
		log.Printf("[Cron] Invitation expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Cron] Expired %d overdue invitation(s)", n)
	}
}

func (s *Scheduler) reconcileFamilies() {
	if s.families == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.families.Reconcile(ctx)
}
