package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chainpad/internal/constants"
	"chainpad/internal/errors"
	"chainpad/internal/logger"
)

// Miner is the demand consumer for on-demand-mining networks: it drains
// the scheduler and asks the node's mining endpoint to produce blocks.
type Miner struct {
	scheduler     *Scheduler
	endpoint      string
	client        *http.Client
	triggerPeriod time.Duration
}

// MinerConfig configures a mining driver
type MinerConfig struct {
	Endpoint      string        // on-demand mining URL, e.g. http://127.0.0.1:9999/make-blocks
	TriggerPeriod time.Duration // idle re-trigger period for WaitNextDemands
	Timeout       time.Duration // per mining request
}

// NewMiner creates a mining driver for the given scheduler
func NewMiner(s *Scheduler, cfg MinerConfig) *Miner {
	if cfg.TriggerPeriod <= 0 {
		cfg.TriggerPeriod = constants.DefaultTriggerPeriod
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPClientTimeout
	}
	return &Miner{
		scheduler:     s,
		endpoint:      cfg.Endpoint,
		client:        &http.Client{Timeout: cfg.Timeout},
		triggerPeriod: cfg.TriggerPeriod,
	}
}

// Run consumes demand events until ctx is cancelled or the scheduler
// closes. Mining failures are logged and do not stop the loop: demand for
// an unreachable node resurfaces with the next transaction push.
func (m *Miner) Run(ctx context.Context) error {
	log := logger.WithFields(logger.Fields{"endpoint": m.endpoint})
	log.Info("Mining driver started")

	for {
		demands, err := m.scheduler.WaitNextDemands(ctx, m.triggerPeriod)
		if err != nil {
			if errors.HasCode(err, errors.ErrSchedulerClosed) || ctx.Err() != nil {
				log.Info("Mining driver stopped")
				return nil
			}
			return err
		}
		if len(demands.Chains) == 0 {
			continue
		}

		if err := m.mine(ctx, demands); err != nil {
			log.WithError(err).Warn("Mining request failed")
		}
	}
}

// mine asks the node to produce demands.Confirmations blocks on each
// demanded chain.
func (m *Miner) mine(ctx context.Context, demands Demands) error {
	blocks := make(map[string]int, len(demands.Chains))
	for _, chain := range demands.Chains {
		blocks[fmt.Sprintf("%d", chain)] = demands.Confirmations
	}

	body, err := json.Marshal(blocks)
	if err != nil {
		return errors.MiningFailed(demands.Chains, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.MiningFailed(demands.Chains, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.MiningFailed(demands.Chains, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return errors.MiningFailed(demands.Chains,
			fmt.Errorf("mining endpoint returned status %d", resp.StatusCode))
	}

	logger.WithFields(logger.Fields{
		"chains":        demands.Chains,
		"confirmations": demands.Confirmations,
	}).Debug("Requested block production")
	return nil
}
