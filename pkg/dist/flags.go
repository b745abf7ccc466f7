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

// Package dist implements the distribution wire protocol below the
// session: handshake messages, capability flags, post-handshake framing,
// control messages and fragment reassembly.
package dist

import "strings"

// Flags is the 64-bit capability bitset exchanged during the handshake.
type Flags uint64

const (
	FlagPublished          Flags = 1 << 0
	FlagAtomCache          Flags = 1 << 1
	FlagExtendedReferences Flags = 1 << 2
	FlagDistMonitor        Flags = 1 << 3
	FlagFunTags            Flags = 1 << 4
	FlagNewFunTags         Flags = 1 << 7
	FlagExtendedPidsPorts  Flags = 1 << 8
	FlagExportPtrTag       Flags = 1 << 9
	FlagBitBinaries        Flags = 1 << 10
	FlagNewFloats          Flags = 1 << 11
	FlagUnicodeIo          Flags = 1 << 12
	FlagDistHdrAtomCache   Flags = 1 << 13
	FlagSmallAtomTags      Flags = 1 << 14
	FlagUtf8Atoms          Flags = 1 << 16
	FlagMapTag             Flags = 1 << 17
	FlagBigCreation        Flags = 1 << 18
	FlagSendSender         Flags = 1 << 19
	FlagBigSeqtraceLabels  Flags = 1 << 20
	FlagExitPayload        Flags = 1 << 22
	FlagFragments          Flags = 1 << 23
	FlagHandshake23        Flags = 1 << 24
	FlagUnlinkId           Flags = 1 << 25
	FlagSpawn              Flags = 1 << 32
	FlagNameMe             Flags = 1 << 33
	FlagV4PidsRefs         Flags = 1 << 34
	FlagAlias              Flags = 1 << 35
)

// MandatoryFlags are the capabilities this engine cannot run without.
// Both sides must advertise every one of them or the handshake aborts.
const MandatoryFlags = FlagExtendedReferences |
	FlagExtendedPidsPorts |
	FlagNewFunTags |
	FlagExportPtrTag |
	FlagBitBinaries |
	FlagNewFloats |
	FlagUtf8Atoms |
	FlagMapTag |
	FlagBigCreation |
	FlagFragments |
	FlagHandshake23 |
	FlagUnlinkId |
	FlagV4PidsRefs

// DefaultFlags is what a session advertises unless configured otherwise.
// The atom cache is deliberately left out so peers never send cache
// references the codec would have to track.
const DefaultFlags = MandatoryFlags |
	FlagFunTags |
	FlagDistMonitor |
	FlagSendSender |
	FlagSpawn |
	FlagAlias

// Negotiate intersects the two advertised flag sets. A mandatory flag
// missing on either side fails with IncompatibleFlags.
func Negotiate(local, peer Flags) (Flags, error) {
	agreed := local & peer
	if missing := MandatoryFlags &^ agreed; missing != 0 {
		return 0, &HandshakeError{Kind: IncompatibleFlags, Detail: missing.String()}
	}
	return agreed, nil
}

func (f Flags) Has(bit Flags) bool { return f&bit == bit }

var flagNames = []struct {
	bit  Flags
	name string
}{
	{FlagPublished, "published"},
	{FlagAtomCache, "atom_cache"},
	{FlagExtendedReferences, "extended_references"},
	{FlagDistMonitor, "dist_monitor"},
	{FlagFunTags, "fun_tags"},
	{FlagNewFunTags, "new_fun_tags"},
	{FlagExtendedPidsPorts, "extended_pids_ports"},
	{FlagExportPtrTag, "export_ptr_tag"},
	{FlagBitBinaries, "bit_binaries"},
	{FlagNewFloats, "new_floats"},
	{FlagDistHdrAtomCache, "dist_hdr_atom_cache"},
	{FlagUtf8Atoms, "utf8_atoms"},
	{FlagMapTag, "map_tag"},
	{FlagBigCreation, "big_creation"},
	{FlagSendSender, "send_sender"},
	{FlagFragments, "fragments"},
	{FlagHandshake23, "handshake_23"},
	{FlagUnlinkId, "unlink_id"},
	{FlagSpawn, "spawn"},
	{FlagV4PidsRefs, "v4_pids_refs"},
	{FlagAlias, "alias"},
}

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.bit != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
