package command

// Opcode identifies a recognized command name.
type Opcode int

const (
	OpUnknown Opcode = iota
	OpGet
	OpSet
	OpIncr
	OpDecr
	OpIncrBy
	OpAppend
	OpLPush
	OpRPush
	OpLPop
	OpRPop
	OpLRange
	OpLLen
	OpSAdd
	OpSRem
	OpSIsMember
	OpSMembers
	OpSCard
	OpHSet
	OpHGet
	OpHDel
	OpHGetAll
	OpHExists
	OpZAdd
	OpZRem
	OpZScore
	OpZRange
	OpZCard
	OpJSONSet
	OpJSONGet
	OpJSONDel
	OpXAdd
	OpXLen
	OpXRange
	OpType
	OpExists
	OpDel
	OpPing
	OpEcho
	OpFlushDB
	OpInfo
)

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// MaxArgs bounds the number of argument StringViews a ParsedCommand can
// hold, independent of any one opcode's own max_args.
const MaxArgs = 128

// unbounded marks a variadic opcode's max_args as MaxArgs.
const unbounded = MaxArgs

// spec is one opcode's argument-arity and key-requirement contract.
type spec struct {
	opcode     Opcode
	minArgs    int
	maxArgs    int
	needsKey   bool
	numericArg int // index into args (0-based, excluding opcode) to pre-parse as int64, or -1
	numericArg2 int // second numeric arg index, or -1
}

var table = map[string]spec{
	"GET":       {OpGet, 1, 1, true, -1, -1},
	"SET":       {OpSet, 2, 2, true, -1, -1},
	"INCR":      {OpIncr, 1, 1, true, -1, -1},
	"DECR":      {OpDecr, 1, 1, true, -1, -1},
	"INCRBY":    {OpIncrBy, 2, 2, true, 1, -1},
	"APPEND":    {OpAppend, 2, 2, true, -1, -1},
	"LPUSH":     {OpLPush, 2, unbounded, true, -1, -1},
	"RPUSH":     {OpRPush, 2, unbounded, true, -1, -1},
	"LPOP":      {OpLPop, 1, 1, true, -1, -1},
	"RPOP":      {OpRPop, 1, 1, true, -1, -1},
	"LRANGE":    {OpLRange, 3, 3, true, 1, 2},
	"LLEN":      {OpLLen, 1, 1, true, -1, -1},
	"SADD":      {OpSAdd, 2, unbounded, true, -1, -1},
	"SREM":      {OpSRem, 2, unbounded, true, -1, -1},
	"SISMEMBER": {OpSIsMember, 2, 2, true, -1, -1},
	"SMEMBERS":  {OpSMembers, 1, 1, true, -1, -1},
	"SCARD":     {OpSCard, 1, 1, true, -1, -1},
	"HSET":      {OpHSet, 3, 127, true, -1, -1},
	"HGET":      {OpHGet, 2, 2, true, -1, -1},
	"HDEL":      {OpHDel, 2, unbounded, true, -1, -1},
	"HGETALL":   {OpHGetAll, 1, 1, true, -1, -1},
	"HEXISTS":   {OpHExists, 2, 2, true, -1, -1},
	"ZADD":      {OpZAdd, 3, 127, true, -1, -1},
	"ZREM":      {OpZRem, 2, unbounded, true, -1, -1},
	"ZSCORE":    {OpZScore, 2, 2, true, -1, -1},
	"ZRANGE":    {OpZRange, 3, 4, true, 1, 2},
	"ZCARD":     {OpZCard, 1, 1, true, -1, -1},
	"JSON.SET":  {OpJSONSet, 3, 3, true, -1, -1},
	"JSON.GET":  {OpJSONGet, 1, 2, true, -1, -1},
	"JSON.DEL":  {OpJSONDel, 1, 2, true, -1, -1},
	"XADD":      {OpXAdd, 3, unbounded, true, -1, -1},
	"XLEN":      {OpXLen, 1, 1, true, -1, -1},
	"XRANGE":    {OpXRange, 3, 3, true, -1, -1},
	"TYPE":      {OpType, 1, 1, true, -1, -1},
	"EXISTS":    {OpExists, 1, unbounded, true, -1, -1},
	"DEL":       {OpDel, 1, unbounded, true, -1, -1},
	"PING":      {OpPing, 0, 1, false, -1, -1},
	"ECHO":      {OpEcho, 1, 1, false, -1, -1},
	"FLUSHDB":   {OpFlushDB, 0, 0, false, -1, -1},
	"INFO":      {OpInfo, 0, 1, false, -1, -1},
}

var opcodeNames = func() map[Opcode]string {
	m := make(map[Opcode]string, len(table))
	for name, s := range table {
		m[s.opcode] = name
	}
	return m
}()

// lookup resolves an uppercased opcode token to its spec. ok is false for
// unrecognized tokens.
func lookup(name string) (spec, bool) {
	s, ok := table[name]
	return s, ok
}
