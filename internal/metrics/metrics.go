// =============================================================================
// CPS Tax-Unit Builder - Run Metrics
// =============================================================================
//
// This module counts what the builder did during a run, labelled by survey
// year. The counters live in a private registry and are written once at the
// end of the run in the Prometheus text format, so a node exporter textfile
// collector can pick them up.
//
// =============================================================================

package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

const namespace = "cps_taxunits"

// Collector holds the run counters. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	persons        *prometheus.CounterVec
	households     *prometheus.CounterVec
	unitsBuilt     *prometheus.CounterVec
	unitsEmitted   *prometheus.CounterVec
	mustFileUnits  *prometheus.CounterVec
	folds          *prometheus.CounterVec
	spouseMisses   *prometheus.CounterVec
	countResets    *prometheus.CounterVec
	filers         *prometheus.CounterVec
	filersAdjusted *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"year"})
	}

	c := &Collector{
		registry:       prometheus.NewRegistry(),
		persons:        counter("persons_total", "Person rows decoded."),
		households:     counter("households_total", "Households processed."),
		unitsBuilt:     counter("units_built_total", "Tax units constructed, including units later folded."),
		unitsEmitted:   counter("units_emitted_total", "Surviving tax units written to output."),
		mustFileUnits:  counter("must_file_units_total", "One-person units built for dependents who must file."),
		folds:          counter("folds_total", "Units folded into another unit as dependents."),
		spouseMisses:   counter("spouse_misses_total", "Married heads whose spouse pointer was not mutual."),
		countResets:    counter("count_resets_total", "Records whose person counts were rebuilt."),
		filers:         counter("filers_total", "Emitted units required to file."),
		filersAdjusted: counter("filers_adjusted_total", "Nonfilers turned into filers by the filer adjustment."),
	}

	c.registry.MustRegister(
		c.persons,
		c.households,
		c.unitsBuilt,
		c.unitsEmitted,
		c.mustFileUnits,
		c.folds,
		c.spouseMisses,
		c.countResets,
		c.filers,
		c.filersAdjusted,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObservePersons adds decoded person rows for a year.
func (c *Collector) ObservePersons(year, n int) {
	c.persons.WithLabelValues(strconv.Itoa(year)).Add(float64(n))
}

// ObserveHousehold records the builder counters of one household.
func (c *Collector) ObserveHousehold(year int, s taxunit.Stats, emitted int) {
	y := strconv.Itoa(year)
	c.households.WithLabelValues(y).Inc()
	c.unitsBuilt.WithLabelValues(y).Add(float64(s.Units))
	c.unitsEmitted.WithLabelValues(y).Add(float64(emitted))
	c.mustFileUnits.WithLabelValues(y).Add(float64(s.MustFileUnits))
	c.folds.WithLabelValues(y).Add(float64(s.Folds))
	c.spouseMisses.WithLabelValues(y).Add(float64(s.SpouseMisses))
	c.countResets.WithLabelValues(y).Add(float64(s.Resets))
	c.filers.WithLabelValues(y).Add(float64(s.Filers))
}

// ObserveAdjusted adds filers created by the filer adjustment.
func (c *Collector) ObserveAdjusted(year, n int) {
	c.filersAdjusted.WithLabelValues(strconv.Itoa(year)).Add(float64(n))
}

// WriteTextfile writes every counter to path in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
