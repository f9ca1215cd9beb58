package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bbs_posts_created_total",
			Help: "Total number of posts created",
		},
	)

	postsEditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bbs_posts_edited_total",
			Help: "Total number of post edits, renames included",
		},
	)

	postsMarkedReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbs_posts_marked_read_total",
			Help: "Total number of read marks written",
		},
		[]string{"source"}, // "read", "next" or "catchup"
	)

	permissionDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbs_permission_denials_total",
			Help: "Total number of denied capability checks",
		},
		[]string{"resource", "capability"},
	)
)
