// Package trng turns raw band-gap conversions into random blocks.
//
// A Corrector keeps a sliding window of the last N accepted samples and emits
// one debiased bit per new sample by comparing it with the window average.
// 32 such bits form a seed word. A Harvester seeds the crypto accelerator's
// PRNG engine with that word, starts generation, waits for the completion
// interrupt and reads a 32-byte block. A Pipeline ties both together behind a
// poll function that fills buffers of any length.
//
// Timeouts and retry limits are off by default, so a stuck converter or
// accelerator blocks the caller until its context is cancelled. Set
// Config.HarvestTimeout and Config.Retry to turn those hazards into errors.
package trng
