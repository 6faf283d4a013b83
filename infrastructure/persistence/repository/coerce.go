package repository

import (
	"math"
	"strconv"
	"strings"

	"prodtracker-backend/infrastructure/persistence/abstractions"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Readers for stored attributes. Stored data may have been written by older
// clients as strings, so each reader accepts number or string forms and
// falls back to the zero value instead of failing the whole item.

func floatAttr(item abstractions.Item, name string) float64 {
	var raw string
	switch v := item[name].(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberBOOL:
		if v.Value {
			return 1
		}
		return 0
	default:
		return 0
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func intAttr(item abstractions.Item, name string) int64 {
	var raw string
	switch v := item[name].(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	default:
		return 0
	}

	raw = strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	// "12.0" and similar
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Trunc(f))
}

func boolAttr(item abstractions.Item, name string) bool {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberN:
		f, err := strconv.ParseFloat(v.Value, 64)
		return err == nil && f != 0
	case *types.AttributeValueMemberS:
		switch strings.ToLower(strings.TrimSpace(v.Value)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}

func stringAttr(item abstractions.Item, name string) string {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

func numberKey(v int) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}
}

func stringKey(v string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: v}
}
