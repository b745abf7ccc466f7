//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package dist

import (
	"fmt"

	"erldist/pkg/etf"
)

// ControlOp is the first element of every control tuple.
type ControlOp int64

const (
	OpLink         ControlOp = 1
	OpSend         ControlOp = 2
	OpExit         ControlOp = 3
	OpUnlink       ControlOp = 4 // legacy, inbound only
	OpRegSend      ControlOp = 6
	OpExit2        ControlOp = 8
	OpMonitorP     ControlOp = 19
	OpDemonitorP   ControlOp = 20
	OpMonitorPExit ControlOp = 21
	OpSendSender   ControlOp = 22
	OpUnlinkId     ControlOp = 35
	OpUnlinkIdAck  ControlOp = 36
)

func (op ControlOp) String() string {
	switch op {
	case OpLink:
		return "LINK"
	case OpSend:
		return "SEND"
	case OpExit:
		return "EXIT"
	case OpUnlink:
		return "UNLINK"
	case OpRegSend:
		return "REG_SEND"
	case OpExit2:
		return "EXIT2"
	case OpMonitorP:
		return "MONITOR_P"
	case OpDemonitorP:
		return "DEMONITOR_P"
	case OpMonitorPExit:
		return "MONITOR_P_EXIT"
	case OpSendSender:
		return "SEND_SENDER"
	case OpUnlinkId:
		return "UNLINK_ID"
	case OpUnlinkIdAck:
		return "UNLINK_ID_ACK"
	}
	return fmt.Sprintf("ControlOp(%d)", int64(op))
}

// HasPayload reports whether a frame with this control op carries a
// payload term after the control tuple.
func (op ControlOp) HasPayload() bool {
	switch op {
	case OpSend, OpRegSend, OpSendSender:
		return true
	}
	return false
}

// Control is a decoded control tuple. Only the fields meaningful for Op
// are populated.
type Control struct {
	Op     ControlOp
	From   etf.Term // sender pid; MONITOR_P_EXIT may carry a name here
	To     etf.Term // destination pid, or atom for REG_SEND/MONITOR_P
	Ref    etf.Term // monitor reference
	Reason etf.Term // exit reason
	Id     etf.Term // unlink operation id
}

// ToPid returns the destination as a pid if it is one.
func (c *Control) ToPid() (etf.Pid, bool) {
	p, ok := c.To.(etf.Pid)
	return p, ok
}

// ToName returns the destination as a registered name if it is one.
func (c *Control) ToName() (etf.Atom, bool) {
	a, ok := c.To.(etf.Atom)
	return a, ok
}

// ParseControl validates and destructures an inbound control term.
func ParseControl(t etf.Term) (Control, error) {
	var c Control
	tup, ok := t.(etf.Tuple)
	if !ok || len(tup) < 1 {
		return c, fmt.Errorf("dist: control message is not a tuple: %s", etf.ToString(t))
	}
	op, ok := tup[0].(etf.Int)
	if !ok {
		return c, fmt.Errorf("dist: control op is not an integer: %s", etf.ToString(tup[0]))
	}
	c.Op = ControlOp(op)
	bad := func() (Control, error) {
		return c, fmt.Errorf("dist: malformed %s control: %s", c.Op, etf.ToString(t))
	}
	switch c.Op {
	case OpLink, OpUnlink:
		if len(tup) != 3 {
			return bad()
		}
		c.From, c.To = tup[1], tup[2]
	case OpSend:
		if len(tup) != 3 {
			return bad()
		}
		c.To = tup[2]
	case OpExit, OpExit2:
		if len(tup) != 4 {
			return bad()
		}
		c.From, c.To, c.Reason = tup[1], tup[2], tup[3]
	case OpRegSend:
		if len(tup) != 4 {
			return bad()
		}
		c.From, c.To = tup[1], tup[3]
	case OpMonitorP, OpDemonitorP:
		if len(tup) != 4 {
			return bad()
		}
		c.From, c.To, c.Ref = tup[1], tup[2], tup[3]
	case OpMonitorPExit:
		if len(tup) != 5 {
			return bad()
		}
		c.From, c.To, c.Ref, c.Reason = tup[1], tup[2], tup[3], tup[4]
	case OpSendSender:
		if len(tup) != 3 {
			return bad()
		}
		c.From, c.To = tup[1], tup[2]
	case OpUnlinkId, OpUnlinkIdAck:
		if len(tup) != 4 {
			return bad()
		}
		c.Id, c.From, c.To = tup[1], tup[2], tup[3]
	default:
		return c, fmt.Errorf("dist: unsupported control op %d", int64(op))
	}
	return c, nil
}

// Control tuple builders for the outbound path.

func SendControl(to etf.Pid) etf.Tuple {
	return etf.Tuple{etf.Int(OpSend), etf.Atom(""), to}
}

func SendSenderControl(from, to etf.Pid) etf.Tuple {
	return etf.Tuple{etf.Int(OpSendSender), from, to}
}

func RegSendControl(from etf.Pid, toName etf.Atom) etf.Tuple {
	return etf.Tuple{etf.Int(OpRegSend), from, etf.Atom(""), toName}
}

func LinkControl(from, to etf.Pid) etf.Tuple {
	return etf.Tuple{etf.Int(OpLink), from, to}
}

func UnlinkIdControl(id uint64, from, to etf.Pid) etf.Tuple {
	return etf.Tuple{etf.Int(OpUnlinkId), etf.Int(id), from, to}
}

func UnlinkIdAckControl(id etf.Term, from, to etf.Pid) etf.Tuple {
	return etf.Tuple{etf.Int(OpUnlinkIdAck), id, from, to}
}

func ExitControl(from, to etf.Pid, reason etf.Term) etf.Tuple {
	return etf.Tuple{etf.Int(OpExit), from, to, reason}
}

func Exit2Control(from, to etf.Pid, reason etf.Term) etf.Tuple {
	return etf.Tuple{etf.Int(OpExit2), from, to, reason}
}

func MonitorControl(from etf.Pid, to etf.Term, ref etf.Ref) etf.Tuple {
	return etf.Tuple{etf.Int(OpMonitorP), from, to, ref}
}

func DemonitorControl(from etf.Pid, to etf.Term, ref etf.Ref) etf.Tuple {
	return etf.Tuple{etf.Int(OpDemonitorP), from, to, ref}
}

func MonitorExitControl(from etf.Term, to etf.Pid, ref etf.Term, reason etf.Term) etf.Tuple {
	return etf.Tuple{etf.Int(OpMonitorPExit), from, to, ref, reason}
}
