package hub

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType classifies what a Z-Wave node is exposed as.
type EntityType string

const (
	// EntityLight is a dimmable or switchable light.
	EntityLight EntityType = "light"

	// EntityCover is a positional cover (blind, shade, curtain).
	EntityCover EntityType = "cover"
)

// entityIDDelimiter separates the three entity id components. None of
// the components may contain it; controller validation and the numeric
// node id guarantee that.
const entityIDDelimiter = "."

// BuildEntityID assembles the canonical entity identifier
// "{type}.{controller}.{node}". The mapping is lossless: ParseEntityID
// recovers all three components exactly.
func BuildEntityID(entityType EntityType, controllerID string, nodeID int) string {
	return string(entityType) + entityIDDelimiter + controllerID + entityIDDelimiter + strconv.Itoa(nodeID)
}

// ParseEntityID splits an entity identifier into its components.
func ParseEntityID(id string) (EntityType, string, int, error) {
	parts := strings.Split(id, entityIDDelimiter)
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("%w: %q", ErrInvalidEntityID, id)
	}

	entityType := EntityType(parts[0])
	if entityType != EntityLight && entityType != EntityCover {
		return "", "", 0, fmt.Errorf("%w: %q: unknown type %q", ErrInvalidEntityID, id, parts[0])
	}
	if parts[1] == "" {
		return "", "", 0, fmt.Errorf("%w: %q: empty controller", ErrInvalidEntityID, id)
	}

	nodeID, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %q: bad node id", ErrInvalidEntityID, id)
	}

	return entityType, parts[1], nodeID, nil
}
