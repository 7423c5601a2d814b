package txtranslator

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// ParseRawBackendLog splits the backend's raw log shape
// {service_flag: u8, account_id: u32, data: bytes} (spec.md §4.8).
func ParseRawBackendLog(raw []byte) (gwtypes.RawBackendLog, error) {
	if len(raw) < 5 {
		return gwtypes.RawBackendLog{}, fmt.Errorf("raw log too short: %d bytes", len(raw))
	}
	return gwtypes.RawBackendLog{
		ServiceFlag: raw[0],
		AccountId:   binary.LittleEndian.Uint32(raw[1:5]),
		Data:        raw[5:],
	}, nil
}

// ParsePolyjuiceSystemLog decodes a service_flag=0x02 log's payload:
// gasUsed u64 LE, cumulativeGasUsed u64 LE, createdAddress 20B,
// statusCode u32 LE (spec.md §4.8).
func ParsePolyjuiceSystemLog(data []byte) (gwtypes.PolyjuiceSystemLog, error) {
	const want = 8 + 8 + 20 + 4
	if len(data) != want {
		return gwtypes.PolyjuiceSystemLog{}, fmt.Errorf("polyjuice system log: expected %d bytes, got %d", want, len(data))
	}
	var created common.Address
	copy(created[:], data[16:36])
	return gwtypes.PolyjuiceSystemLog{
		GasUsed:           binary.LittleEndian.Uint64(data[0:8]),
		CumulativeGasUsed: binary.LittleEndian.Uint64(data[8:16]),
		CreatedAddress:    created,
		StatusCode:        binary.LittleEndian.Uint32(data[36:40]),
	}, nil
}

// ParsePolyjuiceUserLog decodes a service_flag=0x03 log's payload:
// address 20B || dataLen u32 LE || data || topicCount u32 LE ||
// topic[0..topicCount] 32B. A parser must reject a log whose parsed
// length differs from data.len() (spec.md §4.8).
func ParsePolyjuiceUserLog(data []byte) (gwtypes.PolyjuiceUserLog, error) {
	if len(data) < 20+4 {
		return gwtypes.PolyjuiceUserLog{}, fmt.Errorf("polyjuice user log too short: %d bytes", len(data))
	}
	var addr common.Address
	copy(addr[:], data[0:20])

	dataLen := binary.LittleEndian.Uint32(data[20:24])
	cursor := 24
	if cursor+int(dataLen) > len(data) {
		return gwtypes.PolyjuiceUserLog{}, fmt.Errorf("polyjuice user log: data length %d overruns buffer", dataLen)
	}
	logData := data[cursor : cursor+int(dataLen)]
	cursor += int(dataLen)

	if cursor+4 > len(data) {
		return gwtypes.PolyjuiceUserLog{}, fmt.Errorf("polyjuice user log: missing topic count")
	}
	topicCount := binary.LittleEndian.Uint32(data[cursor : cursor+4])
	cursor += 4

	topics := make([]common.Hash, 0, topicCount)
	for i := uint32(0); i < topicCount; i++ {
		if cursor+32 > len(data) {
			return gwtypes.PolyjuiceUserLog{}, fmt.Errorf("polyjuice user log: truncated topic %d", i)
		}
		var topic common.Hash
		copy(topic[:], data[cursor:cursor+32])
		topics = append(topics, topic)
		cursor += 32
	}

	if cursor != len(data) {
		return gwtypes.PolyjuiceUserLog{}, fmt.Errorf("polyjuice user log: parsed length %d != data length %d", cursor, len(data))
	}

	return gwtypes.PolyjuiceUserLog{Address: addr, Data: logData, Topics: topics}, nil
}

// ExtractGasUsed finds the polyjuice system log among a set of raw backend
// logs and returns the estimateGas result: max(gasUsed + extraGas,
// intrinsicGas) (spec.md §4.8).
func ExtractGasUsed(rawLogs [][]byte, extraGas, intrinsicGas uint64) (uint64, error) {
	for _, raw := range rawLogs {
		parsed, err := ParseRawBackendLog(raw)
		if err != nil {
			continue
		}
		if gwtypes.ServiceFlag(parsed.ServiceFlag) != gwtypes.ServiceFlagPolyjuiceSys {
			continue
		}
		sys, err := ParsePolyjuiceSystemLog(parsed.Data)
		if err != nil {
			return 0, fmt.Errorf("parse polyjuice system log: %w", err)
		}
		total := sys.GasUsed + extraGas
		if total < intrinsicGas {
			return intrinsicGas, nil
		}
		return total, nil
	}
	return 0, fmt.Errorf("no polyjuice system log found in execution result")
}
