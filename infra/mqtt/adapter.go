package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voltmesh/cso/core/flush"
	"github.com/voltmesh/cso/core/hierarchy"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/infra/logger"
)

// publisher is the transport surface the adapter drains through.
type publisher interface {
	Publish(topic string, payload []byte) error
}

// Adapter drains the flush queues onto MQTT topics. Property updates and
// CDRs that fail to publish go back to their queue so the next cycle
// retries them.
type Adapter struct {
	pub      publisher
	operator *hierarchy.Operator
	updates  *flush.UpdateLog
	cdrs     *flush.CDRQueue
	prefix   string
	log      logger.Logger
}

// NewAdapter creates a flush adapter publishing under the given topic
// prefix.
func NewAdapter(pub publisher, operator *hierarchy.Operator, updates *flush.UpdateLog, cdrs *flush.CDRQueue, prefix string, log logger.Logger) (*Adapter, error) {
	if pub == nil {
		return nil, fmt.Errorf("mqtt: publisher is required")
	}
	if operator == nil {
		return nil, fmt.Errorf("mqtt: operator is required")
	}
	if log == nil {
		return nil, fmt.Errorf("mqtt: logger is required")
	}
	if updates == nil {
		updates = flush.NewUpdateLog()
	}
	if cdrs == nil {
		cdrs = flush.NewCDRQueue()
	}
	if prefix == "" {
		prefix = "cso/push"
	}
	return &Adapter{pub: pub, operator: operator, updates: updates, cdrs: cdrs, prefix: prefix, log: log}, nil
}

// Updates returns the property update backlog the adapter drains.
func (a *Adapter) Updates() *flush.UpdateLog { return a.updates }

// CDRs returns the CDR backlog the adapter drains.
func (a *Adapter) CDRs() *flush.CDRQueue { return a.cdrs }

type updateBatch struct {
	Time    time.Time              `json:"time"`
	Updates []flush.PropertyUpdate `json:"updates"`
}

// FlushEVSEData publishes the accumulated property updates. An empty
// backlog publishes nothing.
func (a *Adapter) FlushEVSEData(ctx context.Context) error {
	updates := a.updates.DrainAll()
	if len(updates) == 0 {
		return nil
	}
	payload, err := json.Marshal(updateBatch{Time: time.Now(), Updates: updates})
	if err != nil {
		return fmt.Errorf("mqtt: encode update batch: %w", err)
	}
	if err := a.pub.Publish(a.prefix+"/evse/data", payload); err != nil {
		for _, u := range updates {
			a.updates.Record(u)
		}
		return fmt.Errorf("mqtt: publish update batch: %w", err)
	}
	a.log.Debugf("flushed %d property updates", len(updates))
	return nil
}

type statusEntry struct {
	EVSEID      model.EVSEID          `json:"evse_id"`
	Status      model.ConnectorStatus `json:"status"`
	AdminStatus model.AdminStatus     `json:"admin_status"`
}

type statusBatch struct {
	Time     time.Time     `json:"time"`
	Statuses []statusEntry `json:"statuses"`
}

// FlushEVSEStatus publishes a full status snapshot of every connector in
// the hierarchy.
func (a *Adapter) FlushEVSEStatus(ctx context.Context) error {
	conns := a.operator.EVSEs()
	batch := statusBatch{Time: time.Now(), Statuses: make([]statusEntry, 0, len(conns))}
	for _, c := range conns {
		batch.Statuses = append(batch.Statuses, statusEntry{
			EVSEID:      c.ID(),
			Status:      c.Status(),
			AdminStatus: c.AdminStatus(),
		})
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("mqtt: encode status batch: %w", err)
	}
	if err := a.pub.Publish(a.prefix+"/evse/status", payload); err != nil {
		return fmt.Errorf("mqtt: publish status batch: %w", err)
	}
	return nil
}

type cdrBatch struct {
	Time time.Time                  `json:"time"`
	CDRs []model.ChargeDetailRecord `json:"cdrs"`
}

// FlushCDRs publishes the accumulated charge detail records. Records are
// requeued when delivery fails; billing data must not be lost to a
// transient broker outage.
func (a *Adapter) FlushCDRs(ctx context.Context) error {
	cdrs := a.cdrs.DrainAll()
	if len(cdrs) == 0 {
		return nil
	}
	payload, err := json.Marshal(cdrBatch{Time: time.Now(), CDRs: cdrs})
	if err != nil {
		return fmt.Errorf("mqtt: encode cdr batch: %w", err)
	}
	if err := a.pub.Publish(a.prefix+"/cdrs", payload); err != nil {
		for _, c := range cdrs {
			a.cdrs.Push(c)
		}
		return fmt.Errorf("mqtt: publish cdr batch: %w", err)
	}
	a.log.Debugf("flushed %d cdrs", len(cdrs))
	return nil
}
