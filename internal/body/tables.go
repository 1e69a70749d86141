package body

import (
	"fmt"
	"math"
)

// BaseSpeeds are the reference angular speeds (rad/ms) that per-body
// multipliers scale.
type BaseSpeeds struct {
	Orbit    float64
	Rotation float64
}

// DefaultBaseSpeeds matches the tuned look of the visualisation.
var DefaultBaseSpeeds = BaseSpeeds{
	Orbit:    0.00005,
	Rotation: 0.001,
}

// Descriptor is the static configuration of one body.
type Descriptor struct {
	ID                      ID
	Radius                  float64
	Distance                float64
	OrbitSpeedMultiplier    float64
	RotationSpeedMultiplier float64
	Label                   string
	Marker                  bool
	Ring                    bool
}

const (
	// MarkerRadius is the radius of a curiosity marker sphere.
	MarkerRadius = 0.5
	// MarkerClearance is the gap between a body's surface and its marker.
	MarkerClearance = 1.0

	MarkerColor    uint32 = 0x00ffff
	MarkerAckColor uint32 = 0xff00ff

	ringInnerFactor = 1.4
	ringOuterFactor = 2.2
)

// SunDescriptor configures the central star. It never orbits; its rotation
// runs at half the base rate.
var SunDescriptor = Descriptor{
	ID:                      Sun,
	Radius:                  10,
	RotationSpeedMultiplier: 0.5,
	Label:                   "Sol",
	Marker:                  true,
}

// Planets lists the planet descriptors in orbit order. A planet's index in
// this slice decides its starting place on the orbit circle.
var Planets = []Descriptor{
	{ID: Mercury, Radius: 1.5, Distance: 30, OrbitSpeedMultiplier: 4.0, RotationSpeedMultiplier: 1.5, Label: "Mercúrio", Marker: true},
	{ID: Venus, Radius: 3.8, Distance: 45, OrbitSpeedMultiplier: 1.5, RotationSpeedMultiplier: 0.9, Label: "Vênus", Marker: true},
	{ID: Earth, Radius: 4, Distance: 60, OrbitSpeedMultiplier: 1.0, RotationSpeedMultiplier: 1.0, Label: "Terra", Marker: true},
	{ID: Mars, Radius: 2.5, Distance: 75, OrbitSpeedMultiplier: 0.8, RotationSpeedMultiplier: 0.9, Label: "Marte", Marker: true},
	{ID: Jupiter, Radius: 9, Distance: 105, OrbitSpeedMultiplier: 0.2, RotationSpeedMultiplier: 2.5, Label: "Júpiter", Marker: true},
	{ID: Saturn, Radius: 8, Distance: 135, OrbitSpeedMultiplier: 0.09, RotationSpeedMultiplier: 2.0, Label: "Saturno", Marker: true, Ring: true},
	{ID: Uranus, Radius: 6, Distance: 165, OrbitSpeedMultiplier: 0.04, RotationSpeedMultiplier: 1.3, Label: "Urano", Marker: true},
	{ID: Neptune, Radius: 6, Distance: 195, OrbitSpeedMultiplier: 0.01, RotationSpeedMultiplier: 1.4, Label: "Netuno", Marker: true},
}

// Textures maps each body to its texture path, relative to the asset root.
var Textures = [Count]string{
	Sun:     "assets/textures/sun.jpg",
	Mercury: "assets/textures/mercury.jpg",
	Venus:   "assets/textures/venus.jpg",
	Earth:   "assets/textures/earth.jpg",
	Mars:    "assets/textures/mars.jpg",
	Jupiter: "assets/textures/jupiter.jpg",
	Saturn:  "assets/textures/saturn.jpg",
	Uranus:  "assets/textures/uranus.jpg",
	Neptune: "assets/textures/neptune.jpg",
}

// RingTexture is the texture for Saturn's ring.
const RingTexture = "assets/textures/saturn_ring.png"

var fallbackColors = [Count]uint32{
	Sun:     0xffff00,
	Mercury: 0x8c7853,
	Venus:   0xffaa66,
	Earth:   0x2266cc,
	Mars:    0xff3300,
	Jupiter: 0xffcc99,
	Saturn:  0xffdd99,
	Uranus:  0x99ffff,
	Neptune: 0x4d4dff,
}

var curiosities = [Count]string{
	Sun:     "No filme Interestelar, a estrela Gargantua é um buraco negro supermassivo. Os efeitos visuais foram baseados em equações da relatividade geral de Einstein, resultando em uma das representações mais precisas já criadas.",
	Mercury: "A dilatação temporal mostrada em Interestelar ocorre perto de objetos massivos. Em Mercúrio, o efeito é mínimo, mas próximo de Gargantua, uma hora equivalia a 7 anos na Terra.",
	Venus:   "A atmosfera densa de Vênus lembra as nuvens geladas do planeta Mann em Interestelar. No filme, os planetas gelados representavam a luta pela sobrevivência em condições extremas.",
	Earth:   "A Terra em Interestelar sofre com crises agrícolas. O milho é a última cultura sobrevivente, simbolizando a resiliência da vida - tema central do filme.",
	Mars:    "A paisagem árida de Marte reflete a Terra morrendo em Interestelar. A busca por um novo lar impulsiona a missão da nave Endurance.",
	Jupiter: "A gravidade de Júpiter é usada como 'estilingue' em missões espaciais reais. Em Interestelar, a nave usa buracos de minhoca para viagens interestelares - conceito teórico na física.",
	Saturn:  "Saturno é onde o buraco de minhoca aparece em Interestelar. Os anéis simbolizam os ciclos do tempo, tema central do filme.",
	Uranus:  "Urano gira de lado, diferente dos outros planetas. Em Interestelar, a nave Endurance precisa se adaptar a diferentes ambientes planetários para sobreviver.",
	Neptune: "Netuno, o planeta mais distante, representa a fronteira final. Interestelar explora o conceito de que a humanidade não foi feita para morrer na Terra.",
}

// Descriptors returns the sun followed by the planets.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, Count)
	out = append(out, SunDescriptor)
	return append(out, Planets...)
}

// Label returns the display name for id.
func Label(id ID) string {
	if id == Sun {
		return SunDescriptor.Label
	}
	for _, d := range Planets {
		if d.ID == id {
			return d.Label
		}
	}
	return id.String()
}

// Curiosity returns the informational text for id. Every body must have one;
// an empty entry is a configuration defect and panics.
func Curiosity(id ID) string {
	if !id.Valid() {
		panic(fmt.Sprintf("curiosity lookup for invalid body id %d", int(id)))
	}
	text := curiosities[id]
	if text == "" {
		panic(fmt.Sprintf("no curiosity text configured for %s", id))
	}
	return text
}

// FallbackAppearance is the solid appearance used until (or instead of) a
// texture.
func FallbackAppearance(id ID) Appearance {
	if id == Sun {
		return Appearance{
			Color:             fallbackColors[Sun],
			Emissive:          0xff6600,
			EmissiveIntensity: 0.3,
			Opacity:           1,
			Fallback:          true,
		}
	}
	return Appearance{
		Color:     fallbackColors[id],
		Roughness: 0.8,
		Metalness: 0.2,
		Opacity:   1,
		Fallback:  true,
	}
}

// TexturedAppearance is the appearance once id's texture has loaded.
func TexturedAppearance(id ID, texture string) Appearance {
	a := FallbackAppearance(id)
	a.Texture = texture
	a.Color = 0xffffff
	a.Fallback = false
	return a
}

// FallbackRingAppearance is the ring's solid appearance.
func FallbackRingAppearance() Appearance {
	return Appearance{Color: fallbackColors[Saturn], Opacity: 0.6, Fallback: true}
}

// TexturedRingAppearance is the ring's appearance once its texture has loaded.
func TexturedRingAppearance(texture string) Appearance {
	return Appearance{Texture: texture, Color: 0xffffff, Opacity: 0.7}
}

func newRing(radius float64) *Ring {
	return &Ring{
		Inner:      radius * ringInnerFactor,
		Outer:      radius * ringOuterFactor,
		Tilt:       math.Pi / 2,
		Appearance: FallbackRingAppearance(),
	}
}
