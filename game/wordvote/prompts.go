package wordvote

var DefaultPrompts = []string{
	"The worst thing to hear from your pilot",
	"A terrible name for a pet goldfish",
	"What the moon is secretly made of",
	"The eighth day of the week should be called",
	"A rejected flavour of ice cream",
	"The real reason dinosaurs went extinct",
	"Something you should never say at a wedding",
	"A motivational poster nobody asked for",
	"The next big fitness trend",
	"What cats dream about",
	"A bad slogan for a dentist",
	"The title of your autobiography",
	"An unlikely superhero power",
	"The worst possible theme park ride",
	"What aliens think of humans",
	"A fortune cookie that went too far",
}

// dealPrompts gives each connected player a distinct prompt when the deck
// allows it. The deal depends only on seed and round.
func dealPrompts(s *State, deck []string) map[string]string {
	out := make(map[string]string)
	players := s.Players.Connected()
	if len(deck) == 0 {
		return out
	}
	offset := int((uint64(s.Seed) + uint64(s.Round)*7919) % uint64(len(deck)))
	for i, p := range players {
		out[p.ID] = deck[(offset+i)%len(deck)]
	}
	return out
}
