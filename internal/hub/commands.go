package hub

import (
	"context"
	"fmt"
)

// fullOnLevel is the raw command level meaning "fully on"; devices
// treat it as a turn-on rather than a direct dim target.
const fullOnLevel = 99

// resolveEntity validates an entity id against this hub's controller
// and expected type.
func (h *Hub) resolveEntity(entityID string, want EntityType) (int, error) {
	entityType, controllerID, nodeID, err := ParseEntityID(entityID)
	if err != nil {
		return 0, err
	}
	if controllerID != h.controllerID {
		return 0, fmt.Errorf("%w: %q belongs to %q", ErrWrongController, entityID, controllerID)
	}
	if entityType != want {
		return 0, fmt.Errorf("%w: %q is not a %s", ErrUnknownEntity, entityID, want)
	}
	return nodeID, nil
}

// commandContext bounds one device command dispatch.
func (h *Hub) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.commandTimeout)
}

// ControlLight drives a light to a raw 0-100 level: 0 switches off,
// 99 switches fully on, anything else sets a direct dimmer level.
//
// The cache is updated optimistically as soon as the command has been
// issued; dispatch failures are logged and reported but do not undo
// the optimistic state, which the next device report corrects.
func (h *Hub) ControlLight(ctx context.Context, entityID string, level int) error {
	nodeID, err := h.resolveEntity(entityID, EntityLight)
	if err != nil {
		h.logWarn("light command rejected", "entity_id", entityID, "error", err)
		return err
	}

	h.cacheMu.RLock()
	_, ok := h.lights[nodeID]
	h.cacheMu.RUnlock()
	if !ok {
		h.logWarn("light command for unknown node", "entity_id", entityID)
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	cmdCtx, cancel := h.commandContext(ctx)
	defer cancel()

	var (
		dispatchErr error
		on          bool
		brightness  int
	)
	switch {
	case level == 0:
		dispatchErr = h.session.TurnOff(cmdCtx, nodeID)
	case level == fullOnLevel:
		dispatchErr = h.session.TurnOn(cmdCtx, nodeID)
		on = true
		brightness = 255
	default:
		dispatchErr = h.session.SetDimmerLevel(cmdCtx, nodeID, level)
		on = true
		brightness = brightnessFromRaw(float64(level))
	}

	h.commandsTx.Add(1)
	h.applyLightOptimistic(nodeID, on, brightness)

	if dispatchErr != nil {
		h.commandFailures.Add(1)
		h.logError("light command dispatch failed", dispatchErr)
		return fmt.Errorf("dispatching light command: %w", dispatchErr)
	}
	return nil
}

// ToggleLight inverts a light's cached on/off state. When no state has
// been observed yet there is nothing sound to invert, so the command is
// a logged no-op.
func (h *Hub) ToggleLight(ctx context.Context, entityID string) error {
	nodeID, err := h.resolveEntity(entityID, EntityLight)
	if err != nil {
		h.logWarn("toggle rejected", "entity_id", entityID, "error", err)
		return err
	}

	h.cacheMu.RLock()
	light, ok := h.lights[nodeID]
	var known, on bool
	if ok {
		known = light.HasState
		on = light.On
	}
	h.cacheMu.RUnlock()

	if !ok {
		h.logWarn("toggle for unknown node", "entity_id", entityID)
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	if !known {
		h.logInfo("toggle skipped, light state unknown", "entity_id", entityID)
		return nil
	}

	if on {
		return h.ControlLight(ctx, entityID, 0)
	}
	return h.ControlLight(ctx, entityID, fullOnLevel)
}

// applyLightOptimistic stores commanded light attributes and emits them.
func (h *Hub) applyLightOptimistic(nodeID int, on bool, brightness int) {
	h.cacheMu.Lock()
	light, ok := h.lights[nodeID]
	if ok {
		light.HasState = true
		light.On = on
		light.Brightness = brightness
	}
	h.cacheMu.Unlock()

	if ok {
		h.emitLight(nodeID, on, brightness)
	}
}

// ControlCover drives a cover to a 0-100 position. Full open rescales
// to the raw 99 ceiling before dispatch. Movement direction is inferred
// optimistically from the requested position against the cached one.
func (h *Hub) ControlCover(ctx context.Context, entityID string, position int) error {
	nodeID, err := h.resolveEntity(entityID, EntityCover)
	if err != nil {
		h.logWarn("cover command rejected", "entity_id", entityID, "error", err)
		return err
	}

	h.cacheMu.RLock()
	cover, ok := h.covers[nodeID]
	var hadPosition bool
	var prevPosition int
	if ok {
		hadPosition = cover.HasPosition
		prevPosition = cover.Position
	}
	h.cacheMu.RUnlock()
	if !ok {
		h.logWarn("cover command for unknown node", "entity_id", entityID)
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	if position < 0 {
		position = 0
	}
	if position > 100 {
		position = 100
	}
	raw := position
	if raw >= 100 {
		raw = fullOnLevel
	}

	cmdCtx, cancel := h.commandContext(ctx)
	defer cancel()

	dispatchErr := h.session.SetDimmerLevel(cmdCtx, nodeID, raw)
	h.commandsTx.Add(1)

	var state string
	switch {
	case position <= 1:
		state = CoverClosed
	case !hadPosition:
		state = CoverOpening
	case raw > prevPosition:
		state = CoverOpening
	case raw < prevPosition:
		state = CoverClosing
	default:
		state = stationaryState(position)
	}

	h.applyCoverOptimistic(nodeID, raw, state, position)

	if dispatchErr != nil {
		h.commandFailures.Add(1)
		h.logError("cover command dispatch failed", dispatchErr)
		return fmt.Errorf("dispatching cover command: %w", dispatchErr)
	}
	return nil
}

// StopCover halts a moving cover by re-reading the live inventory and
// commanding the current position as the new target.
func (h *Hub) StopCover(ctx context.Context, entityID string) error {
	nodeID, err := h.resolveEntity(entityID, EntityCover)
	if err != nil {
		h.logWarn("stop rejected", "entity_id", entityID, "error", err)
		return err
	}

	// The cached position is stale while the motor runs; re-scan so the
	// stop target is the position the device is actually at.
	h.refreshEntities()

	h.cacheMu.RLock()
	cover, ok := h.covers[nodeID]
	var hasPosition bool
	var position int
	if ok {
		hasPosition = cover.HasPosition
		position = cover.Position
	}
	h.cacheMu.RUnlock()

	if !ok {
		h.logWarn("stop for unknown node", "entity_id", entityID)
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	if !hasPosition {
		h.logInfo("stop skipped, cover position unknown", "entity_id", entityID)
		return nil
	}

	cmdCtx, cancel := h.commandContext(ctx)
	defer cancel()

	dispatchErr := h.session.SetDimmerLevel(cmdCtx, nodeID, position)
	h.commandsTx.Add(1)

	h.applyCoverOptimistic(nodeID, position, stationaryState(uiPosition(position)), uiPosition(position))

	if dispatchErr != nil {
		h.commandFailures.Add(1)
		h.logError("stop command dispatch failed", dispatchErr)
		return fmt.Errorf("dispatching stop command: %w", dispatchErr)
	}
	return nil
}

// applyCoverOptimistic stores commanded cover attributes and emits them.
func (h *Hub) applyCoverOptimistic(nodeID, rawPosition int, state string, uiPos int) {
	h.cacheMu.Lock()
	cover, ok := h.covers[nodeID]
	if ok {
		cover.HasPosition = true
		cover.Position = rawPosition
		cover.State = state
	}
	h.cacheMu.Unlock()

	if ok {
		h.emitCover(nodeID, state, uiPos)
	}
}
