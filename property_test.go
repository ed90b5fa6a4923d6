package main

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

func TestPropCircleSeparation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ra := rapid.Float64Range(0.1, 3).Draw(t, "ra")
		rb := rapid.Float64Range(0.1, 3).Draw(t, "rb")
		ax := rapid.Float64Range(-50, 50).Draw(t, "ax")
		az := rapid.Float64Range(-50, 50).Draw(t, "az")
		bx := rapid.Float64Range(-50, 50).Draw(t, "bx")
		bz := rapid.Float64Range(-50, 50).Draw(t, "bz")

		a := NewCircleBody(EntityRef{Kind: KindTank, ID: "a"}, ax, az, ra)
		b := NewCircleBody(EntityRef{Kind: KindTank, ID: "b"}, bx, bz, rb)
		if !CircleCircleCollision(a, b, PushBoth) {
			return
		}
		d := Distance(a.X, a.Z, b.X, b.Z)
		if want := ra + rb + CollisionEpsilon; d < want-1e-6 || d > want+1e-6 {
			t.Fatalf("distance after separation %v, want %v", d, want)
		}
	})
}

func TestPropCircleRectangleExit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.Float64Range(0.5, 20).Draw(t, "w")
		h := rapid.Float64Range(0.5, 20).Draw(t, "h")
		cx := rapid.Float64Range(-15, 15).Draw(t, "cx")
		cz := rapid.Float64Range(-15, 15).Draw(t, "cz")

		c := NewCircleBody(EntityRef{Kind: KindTank, ID: "a"}, cx, cz, TankRadius)
		r := NewRectangleBody(EntityRef{Kind: KindStaticRectangle, ID: "w"}, 0, 0, w, h)
		if !CircleRectangleCollision(c, r, PushFirst) {
			return
		}
		if CircleRectangleCollision(c, r, DetectOnly) {
			t.Fatalf("circle at (%v,%v) still overlaps %vx%v rectangle", c.X, c.Z, w, h)
		}
	})
}

func TestPropTankStaysWithinLimits(t *testing.T) {
	commands := []Command{
		CmdUpKeyDown, CmdUpKeyUp, CmdDownKeyDown, CmdDownKeyUp,
		CmdLeftKeyDown, CmdLeftKeyUp, CmdRightKeyDown, CmdRightKeyUp, CmdShootDown,
	}
	rapid.Check(t, func(t *rapid.T) {
		tank := NewTank("a", "a", "", 0, 0, 0)
		ticks := rapid.IntRange(1, 200).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			for _, cmd := range rapid.SliceOfN(rapid.SampledFrom(commands), 0, 12).Draw(t, "cmds") {
				tank.Enqueue(cmd)
			}
			tank.Update()
			if s := tank.Speed(); s < -TankSpeedLimit || s > TankSpeedLimit {
				t.Fatalf("speed %v out of bounds", s)
			}
			if rs := tank.RotationSpeed(); rs < 0 || rs > TankRotationLimit {
				t.Fatalf("rotation speed %v out of bounds", rs)
			}
			if tank.Angle < 0 || tank.Angle >= 6.2832 {
				t.Fatalf("angle %v out of range", tank.Angle)
			}
		}
	})
}

func TestPropHealthNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := NewWorld()
		n := rapid.IntRange(2, 6).Draw(t, "tanks")
		for i := 0; i < n; i++ {
			x := rapid.Float64Range(-6, 6).Draw(t, "x")
			z := rapid.Float64Range(-6, 6).Draw(t, "z")
			a := rapid.Float64Range(0, 6.28).Draw(t, "angle")
			tank := vulnerable(string(rune('a'+i)), x, z, a)
			tank.Health = rapid.IntRange(1, TankMaxHealth).Draw(t, "health")
			w.AddTank(tank)
		}

		steps := rapid.IntRange(1, 120).Draw(t, "steps")
		for s := 0; s < steps; s++ {
			for _, tank := range w.Tanks() {
				if rapid.Bool().Draw(t, "shoot") {
					tank.Enqueue(CmdShootDown)
				}
			}
			w.Step()
			for _, tank := range w.Tanks() {
				if tank.Health <= 0 {
					t.Fatalf("live tank %s has health %d", tank.ID, tank.Health)
				}
			}
			for _, b := range w.Bullets() {
				if w.Tank(b.ParentID) == nil {
					t.Fatalf("bullet %s outlived its parent", b.ID)
				}
			}
		}
		for _, k := range w.DrainKills() {
			if w.Tank(k.TargetID) != nil {
				t.Fatalf("killed tank %s still registered", k.TargetID)
			}
		}
	})
}

// fundedWallet accepts every payout
type fundedWallet struct{ paid int64 }

func (w *fundedWallet) ConsensusEstablished() bool { return true }

func (w *fundedWallet) PayoutTo(_ context.Context, p PendingPayment) error {
	w.paid += p.Cost()
	return nil
}

func TestPropQueueNeverOverspends(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		wallet := &fundedWallet{}
		q := NewSettlementQueue(paidConfig(), wallet, nil, testLogger())

		start := rapid.Int64Range(0, 20000).Draw(t, "balance")
		q.SetBalance(start)

		for range rapid.IntRange(0, 30).Draw(t, "payments") {
			q.Enqueue(PendingPayment{
				Address: "A",
				Amount:  rapid.Int64Range(1, 5000).Draw(t, "amount"),
				Fee:     rapid.Int64Range(0, 200).Draw(t, "fee"),
			})
		}
		before := q.Len()
		n := q.Drain(context.Background())

		if wallet.paid > start {
			t.Fatalf("paid %d from balance %d", wallet.paid, start)
		}
		if q.Balance() != start-wallet.paid {
			t.Fatalf("cached balance %d, want %d", q.Balance(), start-wallet.paid)
		}
		if q.Len()+n != before {
			t.Fatalf("lost payments: %d queued, %d drained, %d left", before, n, q.Len())
		}
		for _, p := range q.Pending() {
			if p.Cost() <= q.Balance() {
				t.Fatalf("affordable payment %s left queued", p.ID)
			}
		}
	})
}
