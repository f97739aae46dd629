package hub

import (
	"math"
	"strings"

	"github.com/greyfold/zwave-bridge/internal/zwavejs"
)

// entityClass is the outcome of device type classification.
type entityClass int

const (
	classNone entityClass = iota
	classLight
	classCover
)

// coverKeywords mark positional motor devices. Checked before the
// light keywords so "Multilevel Switch Motor Control" lands on cover.
var coverKeywords = []string{
	"cover", "blind", "shade", "curtain", "window covering", "motor control",
}

// lightKeywords mark switchable and dimmable lights.
var lightKeywords = []string{
	"switch", "dimmer", "multilevel",
}

// classifyDevice maps a reported device type to an entity class using
// case-insensitive substring matching.
func classifyDevice(deviceType string) entityClass {
	t := strings.ToLower(deviceType)

	for _, kw := range coverKeywords {
		if strings.Contains(t, kw) {
			return classCover
		}
	}
	for _, kw := range lightKeywords {
		if strings.Contains(t, kw) {
			return classLight
		}
	}
	return classNone
}

// refreshEntities rebuilds both entity caches from the session's node
// inventory and swaps them in atomically. Enumeration populates state
// without emitting entity updates; only live events and commands emit.
// Returns the resulting cache sizes.
func (h *Hub) refreshEntities() (lights, covers int) {
	newLights := make(map[int]*LightState)
	newCovers := make(map[int]*CoverState)

	for nodeID, d := range h.session.Devices() {
		switch classifyDevice(d.Type) {
		case classLight:
			newLights[nodeID] = buildLightState(nodeID, d)
		case classCover:
			newCovers[nodeID] = buildCoverState(nodeID, d)
		}
	}

	h.cacheMu.Lock()
	h.lights = newLights
	h.covers = newCovers
	h.cacheMu.Unlock()

	return len(newLights), len(newCovers)
}

// buildLightState seeds a light cache entry from an enumerated device.
func buildLightState(nodeID int, d zwavejs.Device) *LightState {
	s := &LightState{
		NodeID: nodeID,
		Name:   d.Name,
		Model:  d.Model,
	}
	if raw, ok := numericValue(d.Value); ok {
		s.HasState = true
		s.On = raw > 0
		s.Brightness = brightnessFromRaw(raw)
	}
	return s
}

// buildCoverState seeds a cover cache entry from an enumerated device.
func buildCoverState(nodeID int, d zwavejs.Device) *CoverState {
	s := &CoverState{
		NodeID: nodeID,
		Name:   d.Name,
		Model:  d.Model,
	}
	if raw, ok := numericValue(d.Value); ok {
		clamped := clampRaw(raw)
		s.HasPosition = true
		s.Position = int(clamped)
		s.State = stationaryState(uiPosition(int(clamped)))
	}
	return s
}

// onValueUpdated is the session's value callback. It runs the full
// validation pipeline; each check short-circuits by logging and
// dropping the event, never by raising.
func (h *Hub) onValueUpdated(u zwavejs.ValueUpdate) {
	h.eventsRx.Add(1)

	if u.NodeID == nil {
		h.eventsDropped.Add(1)
		h.logWarn("dropping value update without node id", "property", u.Property)
		return
	}
	nodeID := *u.NodeID

	h.cacheMu.RLock()
	_, isLight := h.lights[nodeID]
	_, isCover := h.covers[nodeID]
	h.cacheMu.RUnlock()

	// Sensors, thermostats, and other unmapped nodes chat constantly;
	// dropping them is routine, not noteworthy.
	if !isLight && !isCover {
		h.eventsDropped.Add(1)
		return
	}

	if isCover {
		switch u.Property {
		case "duration":
			h.eventsDropped.Add(1)
			return
		case "targetValue":
			h.coverStationary(nodeID)
			return
		}
	}

	if u.NewValue == nil {
		h.eventsDropped.Add(1)
		h.logWarn("dropping value update without value", "node_id", nodeID, "property", u.Property)
		return
	}

	raw, ok := numericValue(u.NewValue)
	if !ok {
		h.eventsDropped.Add(1)
		h.logDebug("dropping non-numeric value update",
			"node_id", nodeID, "property", u.Property, "value_type", typeName(u.NewValue))
		return
	}

	if raw < 0 || raw > 100 {
		h.logWarn("clamping out-of-range value", "node_id", nodeID, "value", raw)
		raw = clampRaw(raw)
	}

	if isLight {
		h.updateLight(nodeID, raw)
	} else {
		h.updateCover(nodeID, raw)
	}
}

// updateLight reconciles a light level sample into the cache, emitting
// only when the derived attributes actually changed.
func (h *Hub) updateLight(nodeID int, raw float64) {
	brightness := brightnessFromRaw(raw)
	on := raw > 0

	h.cacheMu.Lock()
	light, ok := h.lights[nodeID]
	if !ok {
		h.cacheMu.Unlock()
		h.eventsDropped.Add(1)
		return
	}

	if light.HasState && light.On == on && light.Brightness == brightness {
		h.cacheMu.Unlock()
		return
	}

	light.HasState = true
	light.On = on
	light.Brightness = brightness
	h.cacheMu.Unlock()

	h.eventsReconciled.Add(1)
	h.emitLight(nodeID, on, brightness)
}

// updateCover reconciles a cover position sample. Movement direction is
// derived from the previous accepted sample.
func (h *Hub) updateCover(nodeID int, raw float64) {
	newPos := int(clampRaw(raw))
	ui := uiPosition(newPos)

	h.cacheMu.Lock()
	cover, ok := h.covers[nodeID]
	if !ok {
		h.cacheMu.Unlock()
		h.eventsDropped.Add(1)
		return
	}

	var state string
	switch {
	case ui <= 1:
		state = CoverClosed
	case !cover.HasPosition:
		state = CoverOpen
	case newPos > cover.Position:
		state = CoverOpening
	case newPos < cover.Position:
		state = CoverClosing
	default:
		state = CoverOpen
	}

	changed := !cover.HasPosition || cover.Position != newPos || cover.State != state
	cover.HasPosition = true
	cover.Position = newPos
	cover.State = state
	h.cacheMu.Unlock()

	if !changed {
		return
	}

	h.eventsReconciled.Add(1)
	h.emitCover(nodeID, state, ui)
}

// coverStationary handles a targetValue signal: the motor reached its
// target, so the cover is stationary at the cached position. The
// resulting update is emitted unconditionally so hosts recover from a
// missed final position sample.
func (h *Hub) coverStationary(nodeID int) {
	h.cacheMu.Lock()
	cover, ok := h.covers[nodeID]
	if !ok {
		h.cacheMu.Unlock()
		h.eventsDropped.Add(1)
		return
	}

	ui := uiPosition(cover.Position)
	state := stationaryState(ui)
	cover.State = state
	h.cacheMu.Unlock()

	h.eventsReconciled.Add(1)
	h.emitCover(nodeID, state, ui)
}

// stationaryState maps a UI position to the resting cover state.
func stationaryState(ui int) string {
	if ui <= 1 {
		return CoverClosed
	}
	return CoverOpen
}

// onNodeStatus is the session's node status callback. Dead and revived
// nodes surface as availability updates on their entity.
func (h *Hub) onNodeStatus(s zwavejs.NodeStatus) {
	h.cacheMu.RLock()
	_, isLight := h.lights[s.NodeID]
	_, isCover := h.covers[s.NodeID]
	h.cacheMu.RUnlock()

	var entityType EntityType
	switch {
	case isLight:
		entityType = EntityLight
	case isCover:
		entityType = EntityCover
	default:
		return
	}

	h.logInfo("node availability changed", "node_id", s.NodeID, "alive", s.Alive)
	h.emit(Event{
		Kind:         EventEntityUpdate,
		ControllerID: h.controllerID,
		EntityID:     BuildEntityID(entityType, h.controllerID, s.NodeID),
		EntityType:   entityType,
		Attributes:   map[string]any{AttrAvailable: s.Alive},
	})
}

// emitLight publishes a light entity update.
func (h *Hub) emitLight(nodeID int, on bool, brightness int) {
	state := StateOff
	if on {
		state = StateOn
	}
	h.emit(Event{
		Kind:         EventEntityUpdate,
		ControllerID: h.controllerID,
		EntityID:     BuildEntityID(EntityLight, h.controllerID, nodeID),
		EntityType:   EntityLight,
		Attributes: map[string]any{
			AttrState:      state,
			AttrBrightness: brightness,
		},
	})
}

// emitCover publishes a cover entity update.
func (h *Hub) emitCover(nodeID int, state string, uiPos int) {
	h.emit(Event{
		Kind:         EventEntityUpdate,
		ControllerID: h.controllerID,
		EntityID:     BuildEntityID(EntityCover, h.controllerID, nodeID),
		EntityType:   EntityCover,
		Attributes: map[string]any{
			AttrState:    state,
			AttrPosition: uiPos,
		},
	})
}

// brightnessFromRaw converts a raw 0-100 level to the UI 0-255 domain.
// Zero stays exactly zero so off never rounds to a dim glow.
func brightnessFromRaw(raw float64) int {
	if raw <= 0 {
		return 0
	}
	return int(math.Round(raw * 255 / 100))
}

// numericValue extracts a float from a decoded JSON value. Booleans,
// strings, and composites are not numeric.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// clampRaw bounds a sample to the accepted [0,100] range.
func clampRaw(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// typeName describes a value's dynamic type for drop logs.
func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "other"
	}
}
