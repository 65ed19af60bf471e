package main

import (
	"cloud.google.com/go/civil"
	"github.com/raterudder/energyrates/pkg/types"
)

func parseArgs(startStr, endStr, kindStr string) (civil.Date, civil.Date, []types.Kind, error) {
	start, err := types.ParseDay(startStr)
	if err != nil {
		return civil.Date{}, civil.Date{}, nil, err
	}
	end := start
	if endStr != "" {
		if end, err = types.ParseDay(endStr); err != nil {
			return civil.Date{}, civil.Date{}, nil, err
		}
	}
	if kindStr == "" || kindStr == "all" {
		return start, end, nil, nil
	}
	kind, err := types.ParseKind(kindStr)
	if err != nil {
		return civil.Date{}, civil.Date{}, nil, err
	}
	return start, end, []types.Kind{kind}, nil
}
