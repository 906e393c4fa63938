package msg

import (
	"fmt"
	"slices"
	"strings"
)

// Type classifies an envelope. Decoded values outside the table are kept
// as-is; use Known to tell them apart.
type Type uint16

const (
	TypeUndefined     Type = 0
	TypeConfiguration Type = 1
	TypeData          Type = 2
	TypeNetwork       Type = 3
)

// Command is the verb carried alongside the type.
type Command uint16

const (
	CommandReserved  Command = 0
	CommandRead      Command = 1
	CommandWrite     Command = 2
	CommandPrint     Command = 3
	CommandAck       Command = 4
	CommandInput     Command = 5
	CommandReplicate Command = 6
)

// Key names the value a message refers to. Control keys sit below KeyDiv,
// data keys at or above it.
type Key uint16

const (
	KeyUndefined Key = 0
	KeyCActBts   Key = 1
	KeyCRawDat   Key = 2
	KeyCSdrLen   Key = 3
	KeyDInput    Key = 1001
	KeyDSpool    Key = 1002
)

// NodeType is metadata about the sending node. The codec never reads it.
type NodeType uint16

const (
	NodeUndefined     NodeType = 0
	NodeScalarEncoder NodeType = 1
	NodeSpatialPooler NodeType = 2
)

// Enum table names, as used in dotted lookups like "MessageKey.D_INPUT".
const (
	TypeTable     = "MessageType"
	CommandTable  = "MessageCommand"
	KeyTable      = "MessageKey"
	NodeTypeTable = "NodeType"
)

var typeNames = map[Type]string{
	TypeUndefined:     "UNDEFINED",
	TypeConfiguration: "CONFIGURATION",
	TypeData:          "DATA",
	TypeNetwork:       "NETWORK",
}

var commandNames = map[Command]string{
	CommandReserved:  "RESERVED",
	CommandRead:      "READ",
	CommandWrite:     "WRITE",
	CommandPrint:     "PRINT",
	CommandAck:       "ACK",
	CommandInput:     "INPUT",
	CommandReplicate: "REPLICATE",
}

var keyNames = map[Key]string{
	KeyUndefined: "UNDEFINED",
	KeyCActBts:   "C_ACTBTS",
	KeyCRawDat:   "C_RAWDAT",
	KeyCSdrLen:   "C_SDRLEN",
	KeyDInput:    "D_INPUT",
	KeyDSpool:    "D_SPOOL",
}

var nodeTypeNames = map[NodeType]string{
	NodeUndefined:     "UNDEFINED",
	NodeScalarEncoder: "SCALAR_ENCODER",
	NodeSpatialPooler: "SPATIAL_POOLER",
}

var (
	typeByName     = invert(typeNames)
	commandByName  = invert(commandNames)
	keyByName      = invert(keyNames)
	nodeTypeByName = invert(nodeTypeNames)
)

func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string { return enumString(typeNames, t, "Type") }

func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string { return enumString(commandNames, c, "Command") }

func (k Key) Known() bool {
	_, ok := keyNames[k]
	return ok
}

func (k Key) String() string { return enumString(keyNames, k, "Key") }

// IsData reports whether k addresses the data domain.
func (k Key) IsData() bool { return k >= KeyDiv }

// IsControl reports whether k addresses the control domain.
func (k Key) IsControl() bool { return k < KeyDiv }

func (n NodeType) Known() bool {
	_, ok := nodeTypeNames[n]
	return ok
}

func (n NodeType) String() string { return enumString(nodeTypeNames, n, "NodeType") }

// LookupType resolves "DATA" or "MessageType.DATA".
func LookupType(name string) (Type, error) {
	return lookup(typeByName, TypeTable, name)
}

// LookupCommand resolves "WRITE" or "MessageCommand.WRITE".
func LookupCommand(name string) (Command, error) {
	return lookup(commandByName, CommandTable, name)
}

// LookupKey resolves "D_INPUT" or "MessageKey.D_INPUT". Unknown names are
// rejected so a typo at the boundary never turns into key 0.
func LookupKey(name string) (Key, error) {
	return lookup(keyByName, KeyTable, name)
}

// LookupNodeType resolves "SPATIAL_POOLER" or "NodeType.SPATIAL_POOLER".
func LookupNodeType(name string) (NodeType, error) {
	return lookup(nodeTypeByName, NodeTypeTable, name)
}

// Types returns the known types in ascending order.
func Types() []Type { return sortedKeys(typeNames) }

// Commands returns the known commands in ascending order.
func Commands() []Command { return sortedKeys(commandNames) }

// Keys returns the known keys in ascending order.
func Keys() []Key { return sortedKeys(keyNames) }

// NodeTypes returns the known node types in ascending order.
func NodeTypes() []NodeType { return sortedKeys(nodeTypeNames) }

func lookup[E ~uint16](byName map[string]E, table, name string) (E, error) {
	name = strings.TrimSpace(name)
	if prefix, rest, ok := strings.Cut(name, "."); ok {
		if prefix != table {
			return 0, fmt.Errorf("%w: %q is not in %s", ErrUnknownName, name, table)
		}
		name = rest
	}
	v, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownName, table, name)
	}
	return v, nil
}

func enumString[E ~uint16](names map[E]string, v E, kind string) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("%s(%d)", kind, uint16(v))
}

func invert[E ~uint16](names map[E]string) map[string]E {
	out := make(map[string]E, len(names))
	for v, s := range names {
		out[s] = v
	}
	return out
}

func sortedKeys[E ~uint16](names map[E]string) []E {
	out := make([]E, 0, len(names))
	for v := range names {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
