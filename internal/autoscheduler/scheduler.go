// PACKAGE AUTOSCHEDULER IMPLEMENTS C9, THE FAO-56 AUTO SCHEDULER.
//
// GROUNDED ON internal/scheduler/scheduler.go'S gocron WIRING: THE TEACHER REGISTERS ONE CRON
// EXPRESSION PER SCRAPE JOB; HERE A SINGLE REPEATING INTERVAL JOB SWEEPS ALL AUTO-MODE CHANNELS
// ON EACH TICK, MATCHING "one repeating interval job that sweeps all AUTO channels" (SPEC_FULL.MD
// §4.9).
package autoscheduler

import (
	"math"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/environment"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/taskqueue"
	"github.com/nickheyer/Crepes/internal/utils"
)

// CONFIG CARRIES THE SWEEP INTERVAL AND WHETHER AUTO SCHEDULING IS ENABLED AT ALL
type Config struct {
	Interval time.Duration
	Enabled  bool
}

// RAINLOOKUP RESOLVES EFFECTIVE RAINFALL OVER A WINDOW, SHARED WITH C8
type RainLookup func(lookbackHours int) (mm float64, dataQuality float64)

// SCHEDULER SWEEPS ALL AUTO-MODE CHANNELS ON A gocron-DRIVEN INTERVAL
type Scheduler struct {
	cfg     Config
	store   *channelstore.Store
	queue   *taskqueue.Queue
	reader  *environment.Reader
	rain    RainLookup
	logger  *utils.Logger
	gocron  *gocron.Scheduler
	onConstraint func(models.ConstraintAppliedEvent)
}

func NewScheduler(cfg Config, store *channelstore.Store, queue *taskqueue.Queue, reader *environment.Reader,
	rain RainLookup, onConstraint func(models.ConstraintAppliedEvent)) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		cfg: cfg, store: store, queue: queue, reader: reader, rain: rain,
		logger: utils.GetLogger(), onConstraint: onConstraint,
	}
}

// START REGISTERS THE SWEEP WITH gocron AND STARTS IT ASYNCHRONOUSLY, MATCHING THE TEACHER'S
// `InitScheduler` / `Scheduler.StartAsync()` CALL SITE.
func (s *Scheduler) Start() error {
	s.gocron = gocron.NewScheduler(time.UTC)
	if !s.cfg.Enabled {
		s.gocron.StartAsync()
		return nil
	}
	_, err := s.gocron.Every(s.cfg.Interval).Do(s.sweep)
	if err != nil {
		return err
	}
	s.gocron.StartAsync()
	return nil
}

// STOP HALTS THE UNDERLYING gocron SCHEDULER
func (s *Scheduler) Stop() {
	if s.gocron != nil {
		s.gocron.Stop()
	}
}

// SETINTERVAL RECONFIGURES THE SWEEP CADENCE, RESTARTING THE UNDERLYING gocron JOB
func (s *Scheduler) SetInterval(d time.Duration) error {
	s.Stop()
	s.cfg.Interval = d
	return s.Start()
}

// SETENABLED TOGGLES WHETHER THE SWEEP RUNS ON THE NEXT TICK, RESTARTING THE UNDERLYING gocron JOB
func (s *Scheduler) SetEnabled(enabled bool) error {
	s.Stop()
	s.cfg.Enabled = enabled
	return s.Start()
}

func (s *Scheduler) sweep() {
	all := s.store.All()
	sample := s.reader.Sample()
	now := time.Now()
	dayOfYear := now.YearDay()

	for _, ch := range all {
		if ch.WateringMode != models.ModeAutoQuality && ch.WateringMode != models.ModeAutoEco {
			continue
		}
		if !ch.IsAutoValid() {
			continue
		}
		if s.hasPendingOrActive(ch.ID) {
			continue
		}

		liters, skip := s.computeVolume(ch, sample, dayOfYear)
		if skip || liters < 1.0 {
			continue
		}

		task := models.NewTask(utils.GenerateID("task"), ch.ID, models.TriggerScheduled, models.ModeByVolume)
		task.VolumeLiters = liters

		result := s.queue.Enqueue(task)
		s.logger.Info("autoscheduler: sweep enqueue", map[string]any{
			"channelId": ch.ID, "liters": liters, "result": result,
		})
	}
}

func (s *Scheduler) hasPendingOrActive(channelID int) bool {
	for _, t := range s.queue.PendingSnapshot() {
		if t.ChannelID == channelID {
			return true
		}
	}
	if cur, ok := s.queue.Current(); ok && cur.ChannelID == channelID {
		return true
	}
	return false
}

// COMPUTEVOLUME RUNS STEPS 1 AND 3-8 OF SPEC_FULL.MD §4.9 FOR ONE CHANNEL, PLUS STEP 9'S < 1 L SKIP
// (REPORTED THROUGH THE RETURNED BOOL). sweep READS THE SAMPLE (STEP 2) AND DOES THE ENQUEUE.
func (s *Scheduler) computeVolume(ch models.Channel, sample models.EnvSample, dayOfYear int) (float64, bool) {
	daysAfterPlanting := 0
	if ch.PlantingEpoch > 0 {
		daysAfterPlanting = int(time.Now().Sub(time.Unix(ch.PlantingEpoch, 0)).Hours() / 24)
	}

	eto := etoHargreaves(sample.TempMeanC, sample.TempMinC, sample.TempMaxC, ch.LatitudeDeg, dayOfYear, ch.SunExposurePct)

	var kc float64
	var ecoDeficit float64
	plant, ok := models.LookupPlant(ch.PlantIndex)
	if ok {
		kc = plant.KcAt(daysAfterPlanting)
		ecoDeficit = plant.EcoDeficitFrac
	} else if ch.CustomPlant != nil {
		kc = ch.CustomPlant.WaterNeedFactor
		ecoDeficit = 0.15
	} else {
		kc = 0.8
		ecoDeficit = 0.15
	}

	etc := kc * eto

	var rainMM float64
	if s.rain != nil {
		rainMM, _ = s.rain(24)
	}
	netMM := etc - rainMM
	if netMM < 0 {
		netMM = 0
	}

	efficiency := models.IrrigationEfficiency(ch.IrrigationMethod)
	var grossMM float64
	switch ch.WateringMode {
	case models.ModeAutoEco:
		grossMM = netMM * (1 - ecoDeficit) / efficiency
	default:
		grossMM = netMM / efficiency
	}

	var liters float64
	if ch.UseAreaBased {
		liters = grossMM * ch.AreaM2
	} else {
		footprint := 0.25
		if plant != nil {
			footprint = plant.FootprintM2()
		}
		liters = grossMM * footprint * float64(ch.PlantCount)
	}

	if ch.MaxVolumeLimitL > 0 && liters > ch.MaxVolumeLimitL {
		if s.onConstraint != nil {
			s.onConstraint(models.ConstraintAppliedEvent{
				ID: utils.GenerateID("constraint"), ChannelID: ch.ID,
				CalculatedL: liters, CappedL: ch.MaxVolumeLimitL, Mode: ch.WateringMode,
				TimestampEpoch: time.Now().Unix(),
			})
		}
		liters = ch.MaxVolumeLimitL
	}

	if liters < 1.0 {
		return 0, true
	}
	return math.Round(liters), false
}
