package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klokku/slotfinder/pkg/schedule"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host     string    `koanf:"host"`
	Listen   string    `koanf:"listen"`
	Google   Google    `koanf:"google"`
	Database Database  `koanf:"db"`
	Booking  Booking   `koanf:"booking"`
	Fetch    Fetch     `koanf:"fetch"`
	ICS      []ICSFeed `koanf:"ics"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Booking struct {
	TimeStep             time.Duration `koanf:"timestep"`
	Days                 []string      `koanf:"days"`
	DayRange             DayRange      `koanf:"dayrange"`
	MinimumEventDuration time.Duration `koanf:"minimumeventduration"`
	Timezone             string        `koanf:"timezone"`
}

type DayRange struct {
	Min time.Duration `koanf:"min"`
	Max time.Duration `koanf:"max"`
}

type Fetch struct {
	// Concurrency bounds the number of calendars fetched at the same time.
	Concurrency int `koanf:"concurrency"`
	MaxPages    int `koanf:"maxpages"`
	// Composers bounds the number of timelines composed at the same time.
	Composers int `koanf:"composers"`
}

// ICSFeed maps a calendar id to an ICS subscription URL.
type ICSFeed struct {
	Id  string `koanf:"id"`
	Url string `koanf:"url"`
}

func defaults() Application {
	policy := schedule.DefaultPolicy()
	days := make([]string, 0, len(policy.BookingDays))
	for _, d := range policy.BookingDays {
		days = append(days, strings.ToLower(d.String()))
	}

	return Application{
		Host:   "http://localhost:8181",
		Listen: ":8181",
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "slotfinder",
			Pass:   "",
			Name:   "slotfinder",
			Schema: "slotfinder",
		},
		Booking: Booking{
			TimeStep:             policy.TimeStep,
			Days:                 days,
			DayRange:             DayRange{Min: policy.BookingRangeOfDay.Min, Max: policy.BookingRangeOfDay.Max},
			MinimumEventDuration: policy.MinimumEventDuration,
		},
		Fetch: Fetch{
			Concurrency: 4,
			MaxPages:    100,
			Composers:   2,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "SLOTFINDER_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "SLOTFINDER_")), "_", ".")
			if k == "booking.days" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}

// Policy converts the booking section into a validated schedule.BookingPolicy.
func (b Booking) Policy() (schedule.BookingPolicy, error) {
	days := make([]time.Weekday, 0, len(b.Days))
	for _, name := range b.Days {
		day, err := ParseWeekday(name)
		if err != nil {
			return schedule.BookingPolicy{}, err
		}
		days = append(days, day)
	}

	policy := schedule.BookingPolicy{
		TimeStep:             b.TimeStep,
		BookingDays:          days,
		BookingRangeOfDay:    schedule.DayRange{Min: b.DayRange.Min, Max: b.DayRange.Max},
		MinimumEventDuration: b.MinimumEventDuration,
	}
	if b.Timezone != "" {
		location, err := time.LoadLocation(b.Timezone)
		if err != nil {
			return schedule.BookingPolicy{}, fmt.Errorf("could not load location for timezone %s: %w", b.Timezone, err)
		}
		policy.Location = location
	}

	if err := policy.Validate(); err != nil {
		return schedule.BookingPolicy{}, err
	}
	return policy, nil
}

func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
