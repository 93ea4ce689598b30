package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testHub  = common.HexToAddress("0x8CaEe372b8cec0F5850eCbA4276b5e631a51192E")
	otherHub = common.HexToAddress("0x0F0dC21FcC101173BD742F9CfEa8d6e68Ada4031")
)

func orderPlacedLog(addr common.Address, orderID int64) *types.Log {
	return &types.Log{
		Address: addr,
		Topics: []common.Hash{
			hubABI.Events["OrderPlaced"].ID,
			common.BigToHash(big.NewInt(orderID)),
			common.BytesToHash(testHub.Bytes()),
			common.HexToHash("0xaa"),
		},
	}
}

func TestOrderIDFromReceipt(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: testHub, Topics: []common.Hash{common.HexToHash("0x01")}},
		orderPlacedLog(testHub, 42),
	}}
	id, ok := OrderIDFromReceipt(receipt, testHub)
	if !ok {
		t.Fatal("expected order id to be found")
	}
	if id.Int64() != 42 {
		t.Fatalf("expected order id 42, got %s", id)
	}
}

func TestOrderIDFromReceiptIgnoresForeignContracts(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{orderPlacedLog(otherHub, 7)}}
	if _, ok := OrderIDFromReceipt(receipt, testHub); ok {
		t.Fatal("event from another contract must not be trusted")
	}
}

func TestOrderIDFromReceiptIgnoresRemovedLogs(t *testing.T) {
	entry := orderPlacedLog(testHub, 9)
	entry.Removed = true
	receipt := &types.Receipt{Logs: []*types.Log{entry}}
	if _, ok := OrderIDFromReceipt(receipt, testHub); ok {
		t.Fatal("removed log must not yield an order id")
	}
}

func TestOrderIDFromReceiptMissingEvent(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: testHub, Topics: []common.Hash{common.HexToHash("0x02")}},
	}}
	if _, ok := OrderIDFromReceipt(receipt, testHub); ok {
		t.Fatal("expected no order id without an OrderPlaced event")
	}
	if _, ok := OrderIDFromReceipt(nil, testHub); ok {
		t.Fatal("nil receipt must not yield an order id")
	}
}
