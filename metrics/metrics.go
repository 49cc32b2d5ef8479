package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProvisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbaas_provision_total",
		Help: "Database create operations by outcome.",
	}, []string{"result"})

	DeprovisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbaas_deprovision_total",
		Help: "Database delete operations by outcome.",
	}, []string{"result"})

	OrphanedGrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbaas_orphaned_grants_total",
		Help: "Grants created on the backend server but not recorded in the catalog.",
	})

	ZombieGrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbaas_zombie_grants_total",
		Help: "Catalog rows surviving after their backend server artifacts were dropped.",
	})
)
