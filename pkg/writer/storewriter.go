/*
 * Copyright 2025 Ocean Data Tools.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package writer

import (
	"context"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
	"github.com/oceandatatools/rvdas/pkg/recordstore"
)

// RecordStoreWriter persists parsed records into a RecordStore, one table
// per data_id. Non-record input is dropped with a warning.
type RecordStoreWriter struct {
	store recordstore.RecordStore
	ctx   context.Context
	log   logger.Logger

	warned bool
}

// NewRecordStoreWriter builds a writer over store. The context bounds
// every store operation the writer issues.
func NewRecordStoreWriter(ctx context.Context, store recordstore.RecordStore, log logger.Logger) *RecordStoreWriter {
	if log == nil {
		log = logger.Default()
	}

	return &RecordStoreWriter{
		store: store,
		ctx:   ctx,
		log:   log.WithComponent("record_store_writer"),
	}
}

func (w *RecordStoreWriter) Write(in any) error {
	recs, err := models.ToRecords(in)
	if err != nil {
		if !w.warned {
			w.log.Warn().Err(err).Msg("record store writer received unstorable input, dropping")
			w.warned = true
		}

		return nil
	}

	for _, rec := range recs {
		if err := w.store.WriteRecord(w.ctx, rec); err != nil {
			return err
		}
	}

	return nil
}

func (w *RecordStoreWriter) Close() error {
	return w.store.Close(w.ctx)
}
