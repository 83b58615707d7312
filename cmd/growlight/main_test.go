package main

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/diag"
	"github.com/dankamongmen/growlight/internal/graph"
	"github.com/dankamongmen/growlight/internal/ptable"
	"github.com/dankamongmen/growlight/internal/subprocess"
)

func Test(t *testing.T) { TestingT(t) }

type diagKindSuite struct{}

var _ = Suite(&diagKindSuite{})

func (s *diagKindSuite) TestMapsKnownSentinelsToTheirKind(c *C) {
	c.Check(diagKindFor(graph.ErrNotFound), Equals, diag.NotFound)
	c.Check(diagKindFor(ptable.ErrBusyMounted), Equals, diag.BusyMounted)
	c.Check(diagKindFor(ptable.ErrAlreadyHasTable), Equals, diag.WrongLayout)
	c.Check(diagKindFor(subprocess.ErrSubprocessFailed), Equals, diag.SubprocessFailed)
}

func (s *diagKindSuite) TestUnrecognizedErrorFallsBackToInfo(c *C) {
	c.Check(diagKindFor(errPlain("something else")), Equals, diag.Info)
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
