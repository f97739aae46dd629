package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greyfold/zwave-bridge/internal/hub"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/mqtt"
)

// fullOnLevel is the raw light level meaning "fully on"; devices treat
// it as turn-on-with-restore rather than a direct dim target.
const fullOnLevel = 99

// hostBrightnessMax is the top of the host's brightness scale.
const hostBrightnessMax = 255

// Bridge binds hub events to the MQTT host channel in both directions:
// entity updates and connection transitions go out as retained
// messages, and entity set payloads come back in as hub commands.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt MQTTClient
	qos  byte

	// hubs routes inbound commands by controller id.
	hubs   map[string]Commander
	hubsMu sync.RWMutex

	commandsRx       atomic.Uint64
	commandsRejected atomic.Uint64
	publishFailures  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

var _ hub.Sink = (*Bridge)(nil)

// MQTTClient is the broker surface the bridge needs. Satisfied by
// *mqtt.Client; kept narrow for test mocks.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Commander is the command surface of one controller's hub. Satisfied
// by *hub.Hub.
type Commander interface {
	ControlLight(ctx context.Context, entityID string, level int) error
	ToggleLight(ctx context.Context, entityID string) error
	ControlCover(ctx context.Context, entityID string, position int) error
	StopCover(ctx context.Context, entityID string) error
}

// Logger is the bridge's optional logging surface.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Bridge.
type Options struct {
	// MQTTClient is the connected broker client. Required.
	MQTTClient MQTTClient

	// QoS applies to all bridge publishes and subscriptions.
	QoS byte

	// Logger receives bridge logs. Optional.
	Logger Logger
}

// New creates a Bridge. Hubs are attached with RegisterHub before
// Start.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("bridge: mqtt client is required")
	}

	return &Bridge{
		mqtt:   opts.MQTTClient,
		qos:    opts.QoS,
		hubs:   make(map[string]Commander),
		logger: opts.Logger,
	}, nil
}

// RegisterHub attaches a controller's hub for inbound command routing.
func (b *Bridge) RegisterHub(controllerID string, c Commander) {
	b.hubsMu.Lock()
	b.hubs[controllerID] = c
	b.hubsMu.Unlock()
}

// Start subscribes to the entity command topics. Call after the MQTT
// client is connected and hubs are registered.
func (b *Bridge) Start() error {
	if err := b.mqtt.Subscribe(mqtt.Topics{}.AllEntitySets(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to entity commands: %w", err)
	}
	return nil
}

// HandleEvent implements hub.Sink. Hub events become retained MQTT
// messages so hosts reconnecting to the broker see current state.
func (b *Bridge) HandleEvent(e hub.Event) {
	switch e.Kind {
	case hub.EventEntityUpdate:
		b.publishEntityUpdate(e)
	case hub.EventConnecting, hub.EventConnected, hub.EventDisconnected:
		b.publishStatus(e)
	}
}

func (b *Bridge) publishEntityUpdate(e hub.Event) {
	// Availability travels on its own topic so hosts can wire it to
	// their availability tracking independent of state.
	if available, ok := e.Attributes[hub.AttrAvailable]; ok {
		b.publishJSON(mqtt.Topics{}.EntityAvailability(e.EntityID), AvailabilityMessage{
			EntityID:  e.EntityID,
			Timestamp: time.Now().UTC(),
			Available: available == true,
		})
		return
	}

	b.publishJSON(mqtt.Topics{}.EntityState(e.EntityID), StateMessage{
		EntityID:   e.EntityID,
		Timestamp:  time.Now().UTC(),
		Attributes: e.Attributes,
	})
}

func (b *Bridge) publishStatus(e hub.Event) {
	b.publishJSON(mqtt.Topics{}.ControllerStatus(e.ControllerID), StatusMessage{
		ControllerID: e.ControllerID,
		Status:       e.Kind.String(),
		Timestamp:    time.Now().UTC(),
	})
}

func (b *Bridge) publishJSON(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("marshaling host message", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
		b.publishFailures.Add(1)
		b.logWarn("publishing host message failed", "topic", topic, "error", err)
	}
}

// handleCommand is the subscription handler for entity set topics.
// Returned errors are logged by the MQTT client wrapper; a bad command
// never disturbs the rest of the bridge.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	b.commandsRx.Add(1)

	entityID, ok := (mqtt.Topics{}).EntityIDFromSetTopic(topic)
	if !ok {
		b.commandsRejected.Add(1)
		return fmt.Errorf("%w: unexpected topic %q", ErrBadPayload, topic)
	}

	msg, err := parseCommand(payload)
	if err != nil {
		b.commandsRejected.Add(1)
		return err
	}

	_, controllerID, _, err := hub.ParseEntityID(entityID)
	if err != nil {
		b.commandsRejected.Add(1)
		return err
	}

	b.hubsMu.RLock()
	target, ok := b.hubs[controllerID]
	b.hubsMu.RUnlock()
	if !ok {
		b.commandsRejected.Add(1)
		return fmt.Errorf("%w: %q", ErrUnknownController, controllerID)
	}

	b.logDebug("dispatching host command", "entity_id", entityID, "command", msg.Command)

	if err := b.dispatch(target, entityID, msg); err != nil {
		b.commandsRejected.Add(1)
		return err
	}
	return nil
}

// dispatch maps a decoded command onto the hub's command surface. The
// hub applies its own per-command timeout.
func (b *Bridge) dispatch(target Commander, entityID string, msg CommandMessage) error {
	ctx := context.Background()

	switch msg.Command {
	case CommandTurnOn:
		return target.ControlLight(ctx, entityID, fullOnLevel)
	case CommandTurnOff:
		return target.ControlLight(ctx, entityID, 0)
	case CommandToggle:
		return target.ToggleLight(ctx, entityID)
	case CommandSetBrightness:
		if msg.Value == nil {
			return fmt.Errorf("%w: %s", ErrMissingValue, msg.Command)
		}
		return target.ControlLight(ctx, entityID, brightnessToLevel(*msg.Value))
	case CommandOpen:
		return target.ControlCover(ctx, entityID, 100)
	case CommandClose:
		return target.ControlCover(ctx, entityID, 0)
	case CommandSetPosition:
		if msg.Value == nil {
			return fmt.Errorf("%w: %s", ErrMissingValue, msg.Command)
		}
		return target.ControlCover(ctx, entityID, int(math.Round(*msg.Value)))
	case CommandStop:
		return target.StopCover(ctx, entityID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Command)
	}
}

// brightnessToLevel converts the host's 0-255 brightness to the raw
// 0-99 light level. Full brightness lands exactly on the turn-on level
// so restore-capable devices go fully on.
func brightnessToLevel(v float64) int {
	if v <= 0 {
		return 0
	}
	if v >= hostBrightnessMax {
		return fullOnLevel
	}
	return int(math.Round(v * fullOnLevel / hostBrightnessMax))
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	CommandsReceived uint64
	CommandsRejected uint64
	PublishFailures  uint64
}

// GetStats returns current counters.
func (b *Bridge) GetStats() Stats {
	return Stats{
		CommandsReceived: b.commandsRx.Load(),
		CommandsRejected: b.commandsRejected.Load(),
		PublishFailures:  b.publishFailures.Load(),
	}
}

// SetLogger sets the bridge logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
