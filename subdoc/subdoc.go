package subdoc

import (
	"github.com/couchbase/gocbcore/v10/memd"
)

// LookupOp enumerates the sub-document operations that read a path inside
// a document without fetching the whole body.
type LookupOp int

const (
	LookupGet LookupOp = iota
	LookupExists
)

// Opcode returns the binary protocol opcode carrying this lookup.
func (op LookupOp) Opcode() memd.CmdCode {
	switch op {
	case LookupGet:
		return memd.CmdSubDocGet
	case LookupExists:
		return memd.CmdSubDocExists
	}
	return memd.CmdSubDocGet
}

func (op LookupOp) String() string {
	switch op {
	case LookupGet:
		return "Get"
	case LookupExists:
		return "Exists"
	}
	return "Unknown"
}

// MutationOp enumerates the sub-document operations that mutate a path
// inside a document.
type MutationOp int

const (
	MutationDictAdd MutationOp = iota
	MutationDictSet
	MutationDelete
	MutationReplace
	MutationArrayPushLast
	MutationArrayPushFirst
	MutationArrayInsert
	MutationArrayAddUnique
	MutationCounter
)

// Opcode returns the binary protocol opcode carrying this mutation.
func (op MutationOp) Opcode() memd.CmdCode {
	switch op {
	case MutationDictAdd:
		return memd.CmdSubDocDictAdd
	case MutationDictSet:
		return memd.CmdSubDocDictSet
	case MutationDelete:
		return memd.CmdSubDocDelete
	case MutationReplace:
		return memd.CmdSubDocReplace
	case MutationArrayPushLast:
		return memd.CmdSubDocArrayPushLast
	case MutationArrayPushFirst:
		return memd.CmdSubDocArrayPushFirst
	case MutationArrayInsert:
		return memd.CmdSubDocArrayInsert
	case MutationArrayAddUnique:
		return memd.CmdSubDocArrayAddUnique
	case MutationCounter:
		return memd.CmdSubDocCounter
	}
	return memd.CmdSubDocDictAdd
}

func (op MutationOp) String() string {
	switch op {
	case MutationDictAdd:
		return "DictAdd"
	case MutationDictSet:
		return "DictSet"
	case MutationDelete:
		return "Delete"
	case MutationReplace:
		return "Replace"
	case MutationArrayPushLast:
		return "ArrayPushLast"
	case MutationArrayPushFirst:
		return "ArrayPushFirst"
	case MutationArrayInsert:
		return "ArrayInsert"
	case MutationArrayAddUnique:
		return "ArrayAddUnique"
	case MutationCounter:
		return "Counter"
	}
	return "Unknown"
}
