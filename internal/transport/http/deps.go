// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"encoding/json"
)

type JobSubmitter interface {
	Submit(ctx context.Context, humanImage, clothImage string) (string, error)
}

type JobStatusFetcher interface {
	Status(ctx context.Context, taskID string) (json.RawMessage, error)
}
