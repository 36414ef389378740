package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "license_validations_total",
		Help:      "License validation decisions by outcome.",
	}, []string{"outcome"})

	redemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "license_redemptions_total",
		Help:      "Successful license redemptions.",
	})

	keysGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "license_keys_generated_total",
		Help:      "License keys generated by tier.",
	}, []string{"tier"})

	revocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "license_revocations_total",
		Help:      "License revocations.",
	})

	downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "downloads_granted_total",
		Help:      "Download links granted after gating checks.",
	})

	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "account_registrations_total",
		Help:      "Accounts registered.",
	})
)
