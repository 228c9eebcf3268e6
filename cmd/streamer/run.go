package main

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/sim/stream"
	"voxelstream/internal/transport/observer"
)

// path is the scripted walk the headless host follows: a circle around the
// origin, or a straight line along +x when Radius is zero.
type path struct {
	Radius float64
	Speed  float64
	Hz     int
}

const eyeHeight = 60

func (p path) At(tick uint64) mgl32.Vec3 {
	dist := p.Speed * float64(tick) / float64(p.Hz)
	if p.Radius <= 0 {
		return mgl32.Vec3{float32(dist), eyeHeight, 0}
	}
	a := dist / p.Radius
	return mgl32.Vec3{float32(p.Radius * math.Cos(a)), eyeHeight, float32(p.Radius * math.Sin(a))}
}

func run(ctx context.Context, s *stream.Streamer, obs *observer.Server, walk path, radius int, maxTicks uint64, logger *log.Logger) error {
	t := time.NewTicker(time.Second / time.Duration(walk.Hz))
	defer t.Stop()

	var n uint64
	for {
		if err := s.UpdateView(stream.View{Position: walk.At(n), Radius: radius}); err != nil {
			return err
		}
		if err := s.Tick(); err != nil {
			return err
		}
		st := s.Stats()
		if err := obs.Publish(st); err != nil {
			logger.Printf("publish: %v", err)
		}
		if n%uint64(walk.Hz*10) == 0 {
			logger.Printf("tick=%d center=%s resident=%d meshes=%d states=%v", st.Tick, st.Center, st.Resident, st.Meshes, st.States)
		}
		n++
		if maxTicks > 0 && n >= maxTicks {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
