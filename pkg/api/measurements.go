package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/openbiotel/biotel-monitor-go/pkg/model"
)

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

// Devices fetches the device list.
func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	var resp itemsResponse[model.Device]
	if err := c.Get(ctx, "/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// DevicePatch is the admin-editable part of a device record.
//
//nolint:tagliatelle // external API
type DevicePatch struct {
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// UpdateDevice issues the patient linkage update. The backend may answer
// with the updated record or an empty body.
func (c *Client) UpdateDevice(
	ctx context.Context,
	deviceID string,
	patch DevicePatch,
) (*model.Device, error) {
	var updated model.Device
	path := fmt.Sprintf("/devices/%s", url.PathEscape(deviceID))
	if err := c.Put(ctx, path, patch, &updated); err != nil {
		return nil, err
	}
	if updated.DeviceID == "" {
		return nil, nil
	}
	return &updated, nil
}

// Measurements fetches one page of measurements for a device. from/to are
// epoch milliseconds; server ordering is not guaranteed.
func (c *Client) Measurements(
	ctx context.Context,
	deviceID string,
	from, to int64,
	limit int,
) ([]model.Measurement, error) {
	query := url.Values{}
	query.Set("device_id", deviceID)
	query.Set("from", strconv.FormatInt(from, 10))
	query.Set("to", strconv.FormatInt(to, 10))
	query.Set("limit", strconv.Itoa(limit))

	var resp itemsResponse[model.Measurement]
	if err := c.Get(ctx, "/measurements", query, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
