package controller

import (
	"io/fs"
	"time"

	"github.com/crazy-max/nestfs/pkg/vfs"
)

// Type is the type of a node.
type Type int

const (
	File Type = iota
	Directory
	Symlink
	Special
)

func (t Type) String() string {
	switch t {
	case File:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "special"
	}
}

// Node describes an entry of a file system.
type Node struct {
	Entry   vfs.EntryName
	Type    Type
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	// Members holds the sorted member names of a directory.
	Members []string
}

func typeOf(mode fs.FileMode) Type {
	switch {
	case mode.IsDir():
		return Directory
	case mode.IsRegular():
		return File
	case mode&fs.ModeSymlink != 0:
		return Symlink
	}
	return Special
}

// Info returns n as fs.FileInfo named name.
func (n *Node) Info(name string) fs.FileInfo {
	return nodeInfo{name: name, node: n}
}

type nodeInfo struct {
	name string
	node *Node
}

func (i nodeInfo) Name() string       { return i.name }
func (i nodeInfo) Size() int64        { return i.node.Size }
func (i nodeInfo) ModTime() time.Time { return i.node.ModTime }
func (i nodeInfo) IsDir() bool        { return i.node.Type == Directory }
func (i nodeInfo) Sys() any           { return i.node }

func (i nodeInfo) Mode() fs.FileMode {
	switch i.node.Type {
	case Directory:
		return fs.ModeDir | i.node.Mode.Perm()
	case Symlink:
		return fs.ModeSymlink | i.node.Mode.Perm()
	}
	return i.node.Mode
}
