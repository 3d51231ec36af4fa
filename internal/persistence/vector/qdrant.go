package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the caller-supplied id when it is not itself a
// UUID, since Qdrant point ids must be UUIDs or unsigned integers.
const payloadIDField = "_original_id"

// payloadTextField stores the chunk text alongside its metadata so it can
// be returned from Query without a second lookup.
const payloadTextField = "_text"

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrantStore dials Qdrant's gRPC API (port 6334 by default) and
// ensures the target collection exists with the requested metric.
func NewQdrantStore(dsn, collection string, dimension int, metric string) (Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("qdrant: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("qdrant: invalid port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}
	qs := &qdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	if err := qs.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant: ensure collection: %w", err)
	}
	return qs, nil
}

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("dimension must be > 0")
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclid", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	default:
		distance = qdrant.Distance_Cosine
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *qdrantStore) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string, text string) error {
	uid := pointUUID(id)
	payload := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[payloadTextField] = text
	if uid != id {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *qdrantStore) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointUUID(id))),
	})
	return err
}

// distanceFromScore converts Qdrant's always-higher-is-better score to a
// distance so callers see one uniform 0-is-best semantic across backends.
// For cosine/dot, score is a similarity in roughly [-1,1]; the conversion
// is distance = max(0, 1-score).
func distanceFromScore(score float32) float64 {
	d := 1 - float64(score)
	if d < 0 {
		return 0
	}
	return d
}

func (q *qdrantStore) Query(ctx context.Context, embedding []float32, filter map[string]string, k int) ([]Match, error) {
	if k <= 0 {
		k = 10
	}
	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, qdrant.NewMatch(key, val))
		}
		qf = &qdrant.Filter{Must: must}
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(hits))
	for _, hit := range hits {
		uid := hit.Id.GetUuid()
		if uid == "" {
			uid = hit.Id.String()
		}
		metadata := make(map[string]string)
		var originalID, text string
		if hit.Payload != nil {
			for key, v := range hit.Payload {
				switch key {
				case payloadIDField:
					originalID = v.GetStringValue()
				case payloadTextField:
					text = v.GetStringValue()
				default:
					metadata[key] = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = uid
		}
		out = append(out, Match{ID: id, Distance: distanceFromScore(hit.Score), Metadata: metadata, Text: text})
	}
	return out, nil
}

func (q *qdrantStore) Dimension() int { return q.dimension }

func (q *qdrantStore) Close() error { return q.client.Close() }
