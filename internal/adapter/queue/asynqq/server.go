package asynqq

import (
	"github.com/hibiken/asynq"
)

// RunServer starts a blocking asynq.Server consuming only queue, dispatching
// taskType to handler. Each stage worker binary (encoder/retriever/
// generator-replica) owns exactly one of these so that queue consumption
// stays scoped to the stage (and, for generators, to a single replica
// shard).
func RunServer(redisOpt asynq.RedisConnOpt, queue string, concurrency int, taskType string, handler asynq.HandlerFunc) error {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(taskType, handler)
	return srv.Run(mux)
}
