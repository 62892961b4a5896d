package store

import (
	"encoding/json"
	"fmt"
	"os"

	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"go.uber.org/zap"
)

var logger = configuredLogger.Logger

// JsonLinesStore appends each event as one JSON line to a file.
type JsonLinesStore struct {
	File        *os.File
	ProcessChan chan Event
	CloseChan   chan bool
}

func NewJsonLinesStore(file *os.File) *JsonLinesStore {
	return &JsonLinesStore{
		File:        file,
		ProcessChan: make(chan Event, 256),
		CloseChan:   make(chan bool),
	}
}

func (s *JsonLinesStore) GetProcessChan() chan Event {
	return s.ProcessChan
}

func (s *JsonLinesStore) GetCloseChan() chan bool {
	return s.CloseChan
}

func (s *JsonLinesStore) Process() {
	for {
		select {
		case event := <-s.ProcessChan:
			b, err := json.Marshal(event)
			if err != nil {
				logger.Error("failed to encode event", zap.String("deviceId", event.DeviceID), zap.Error(err))
				continue
			}
			fmt.Fprintln(s.File, string(b))
			s.File.Sync()
		case <-s.CloseChan:
			return
		}
	}
}
