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

package etf

import (
	"encoding/binary"
)

// External term format tag bytes. Wire constants; values must match the
// format exactly.
const (
	kVersionMagic byte = 131

	kCompressedTag byte = 80

	kSmallIntegerTag   byte = 97
	kIntegerTag        byte = 98
	kFloatTag          byte = 99 // legacy string float, decode only
	kNewFloatTag       byte = 70
	kAtomTag           byte = 100 // legacy latin-1, decode only
	kSmallAtomTag      byte = 115 // legacy latin-1, decode only
	kAtomUtf8Tag       byte = 118
	kSmallAtomUtf8Tag  byte = 119
	kSmallTupleTag     byte = 104
	kLargeTupleTag     byte = 105
	kNilTag            byte = 106
	kStringTag         byte = 107
	kListTag           byte = 108
	kBinaryTag         byte = 109
	kBitBinaryTag      byte = 77
	kSmallBigTag       byte = 110
	kLargeBigTag       byte = 111
	kReferenceTag      byte = 101 // legacy, decode only
	kNewReferenceTag   byte = 114 // legacy u8 creation, decode only
	kNewerReferenceTag byte = 90
	kPidTag            byte = 103 // legacy u8 creation, decode only
	kNewPidTag         byte = 88
	kPortTag           byte = 102 // legacy u8 creation, decode only
	kNewPortTag        byte = 89
	kV4PortTag         byte = 120
	kMapTag            byte = 116
	kNewFunTag         byte = 112
	kExportTag         byte = 113
	kAtomCacheRefTag   byte = 82
)

const (
	kMaxSmallInt   = 255
	kMaxSmallAtom  = 255
	kMaxSmallTuple = 255
	kMaxStringLen  = 65535
	kMaxAtomLen    = 65535
)

// EncByteOrder is the byte order of every multi-byte field in the format.
var EncByteOrder = binary.BigEndian
