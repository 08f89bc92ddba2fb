package presence

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"sync"
	"testing"
)

func TestJoinAndLeave(t *testing.T) {
	tbl := New()

	res, err := tbl.Join("c1", "alice", "general")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !res.First || res.AlreadyMember {
		t.Errorf("first join = %+v, want First", res)
	}
	if !reflect.DeepEqual(res.Members, []string{"alice"}) {
		t.Errorf("Members = %v, want [alice]", res.Members)
	}

	res, _ = tbl.Join("c2", "bob", "general")
	if !reflect.DeepEqual(res.Members, []string{"alice", "bob"}) {
		t.Errorf("Members = %v, want [alice bob]", res.Members)
	}

	again, _ := tbl.Join("c1", "alice", "general")
	if !again.AlreadyMember || again.First {
		t.Errorf("repeat join = %+v, want AlreadyMember", again)
	}

	left := tbl.Leave("c2", "general")
	if !left.WasMember || !left.UserVacated || left.RoomEmpty {
		t.Errorf("Leave() = %+v", left)
	}
	if !reflect.DeepEqual(left.Members, []string{"alice"}) {
		t.Errorf("Members after leave = %v, want [alice]", left.Members)
	}

	if got := tbl.Leave("c2", "general"); got.WasMember {
		t.Errorf("second Leave() = %+v, want WasMember false", got)
	}

	last := tbl.Leave("c1", "general")
	if !last.RoomEmpty || len(last.Members) != 0 {
		t.Errorf("last Leave() = %+v, want empty room", last)
	}
	if s := tbl.Stats(); s.Rooms != 0 {
		t.Errorf("Stats().Rooms = %d, want 0", s.Rooms)
	}
}

func TestJoinIdentityMismatch(t *testing.T) {
	tbl := New()
	if _, err := tbl.Join("c1", "alice", "general"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := tbl.Join("c1", "mallory", "random"); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("Join() error = %v, want ErrIdentityMismatch", err)
	}
	if got := tbl.Members("random"); len(got) != 0 {
		t.Errorf("rejected join left members %v", got)
	}
}

func TestMultiDevicePresence(t *testing.T) {
	tbl := New()
	tbl.Join("phone", "alice", "general")
	second, _ := tbl.Join("laptop", "alice", "general")
	if second.First {
		t.Error("second device reported as first connection")
	}
	if !reflect.DeepEqual(second.Members, []string{"alice"}) {
		t.Errorf("Members = %v, want alice once", second.Members)
	}

	left := tbl.Leave("phone", "general")
	if left.UserVacated {
		t.Error("user vacated while another device is still joined")
	}
	if !reflect.DeepEqual(left.Members, []string{"alice"}) {
		t.Errorf("Members = %v, want [alice]", left.Members)
	}

	user, updates := tbl.DisconnectAll("laptop")
	if user != "alice" {
		t.Errorf("DisconnectAll user = %q, want alice", user)
	}
	if len(updates) != 1 || !updates[0].UserVacated || !updates[0].RoomEmpty {
		t.Errorf("updates = %+v", updates)
	}
}

func TestDisconnectAll(t *testing.T) {
	tbl := New()
	tbl.Join("c1", "alice", "general")
	tbl.Join("c1", "alice", "random")
	tbl.Join("c2", "bob", "random")

	if got := tbl.RoomsOf("c1"); !reflect.DeepEqual(got, []string{"general", "random"}) {
		t.Fatalf("RoomsOf() = %v", got)
	}

	user, updates := tbl.DisconnectAll("c1")
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}
	want := []RoomUpdate{
		{Room: "general", Members: []string{}, UserVacated: true, RoomEmpty: true},
		{Room: "random", Members: []string{"bob"}, UserVacated: true, RoomEmpty: false},
	}
	if !reflect.DeepEqual(updates, want) {
		t.Errorf("updates = %+v, want %+v", updates, want)
	}

	if _, again := tbl.DisconnectAll("c1"); len(again) != 0 {
		t.Errorf("second DisconnectAll() = %+v, want none", again)
	}
	if got := tbl.RoomsOf("c1"); len(got) != 0 {
		t.Errorf("RoomsOf() after disconnect = %v", got)
	}
	if tbl.IsMember("c1", "random") {
		t.Error("IsMember() true after disconnect")
	}
	if got := tbl.Recipients("random"); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Errorf("Recipients() = %v, want [c2]", got)
	}
}

func TestConcurrentJoinsSameUser(t *testing.T) {
	tbl := New()

	var wg sync.WaitGroup
	firsts := make(chan bool, 2)
	for _, conn := range []string{"tab-1", "tab-2"} {
		wg.Add(1)
		go func(conn string) {
			defer wg.Done()
			res, err := tbl.Join(conn, "alice", "general")
			if err != nil {
				t.Errorf("Join() error = %v", err)
				return
			}
			firsts <- res.First
		}(conn)
	}
	wg.Wait()
	close(firsts)

	var count int
	for f := range firsts {
		if f {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d joins reported First, want exactly 1", count)
	}
	if got := tbl.Members("general"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("Members() = %v, want alice exactly once", got)
	}
}

// TestPresenceMatchesModel replays random concurrent operations and checks
// the final table against the set of memberships that should remain.
func TestPresenceMatchesModel(t *testing.T) {
	tbl := New()
	rooms := []string{"general", "random", "dev"}
	users := []string{"alice", "bob", "carol"}

	const workers = 8
	var wg sync.WaitGroup
	finals := make([]map[string]bool, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w)))
			conn := fmt.Sprintf("conn-%d", w)
			user := users[w%len(users)]
			joined := make(map[string]bool)

			for i := 0; i < 500; i++ {
				r := rooms[rng.Intn(len(rooms))]
				switch rng.Intn(10) {
				case 0:
					tbl.DisconnectAll(conn)
					joined = make(map[string]bool)
				case 1, 2, 3, 4:
					tbl.Leave(conn, r)
					delete(joined, r)
				default:
					if _, err := tbl.Join(conn, user, r); err != nil {
						t.Errorf("Join() error = %v", err)
						return
					}
					joined[r] = true
				}
			}
			finals[w] = joined
		}(w)
	}
	wg.Wait()

	for _, r := range rooms {
		want := make(map[string]bool)
		for w, joined := range finals {
			if joined[r] {
				want[users[w%len(users)]] = true
			}
		}
		var wantList []string
		for u := range want {
			wantList = append(wantList, u)
		}
		sort.Strings(wantList)
		if wantList == nil {
			wantList = []string{}
		}
		if got := tbl.Members(r); !reflect.DeepEqual(got, wantList) {
			t.Errorf("Members(%q) = %v, want %v", r, got, wantList)
		}
	}
}
