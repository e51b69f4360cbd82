package app

import (
	"errors"

	"fitgenius-bot/internal/gateway"
	"fitgenius-bot/internal/models"
)

// UserMessage turns an error from the machine into the text shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gateway.ErrNoCredentials):
		return "Belum ada API key yang tersedia. Tambahkan API key terlebih dahulu."
	case errors.Is(err, gateway.ErrAllCredentialsFailed) && errors.Is(err, gateway.ErrQuotaExceeded):
		return "Kuota semua API key sudah habis. Coba lagi nanti atau tambahkan API key baru."
	case errors.Is(err, gateway.ErrAllCredentialsFailed):
		return "Semua API key ditolak. Periksa kembali API key kamu."
	case errors.Is(err, gateway.ErrQuotaExceeded):
		return "Kuota API sedang habis. Coba lagi sebentar lagi."
	case errors.Is(err, gateway.ErrAuthFailure):
		return "API key ditolak. Periksa kembali API key kamu."
	case errors.Is(err, gateway.ErrMalformedResponse):
		return "AI memberikan jawaban yang tidak valid. Silakan coba lagi."
	case errors.Is(err, gateway.ErrTransport):
		return "Gagal terhubung ke layanan AI. Periksa koneksi dan coba lagi."
	case errors.Is(err, ErrBusy):
		return "Permintaan sebelumnya masih diproses. Mohon tunggu."
	case errors.Is(err, ErrStale):
		return "Hasil sebelumnya dibatalkan karena kamu sudah berpindah halaman."
	case errors.Is(err, ErrNoPlan):
		return "Kamu belum punya rencana latihan. Selesaikan onboarding dulu dengan /start."
	case errors.Is(err, ErrUnknownDay):
		return "Hari tidak ditemukan. Pilih hari 1 sampai 7."
	case errors.Is(err, ErrRestDay):
		return "Hari ini hari istirahat. Nikmati pemulihanmu!"
	case errors.Is(err, ErrWeekMismatch):
		return "Check-in ini bukan untuk minggu yang sedang berjalan."
	case errors.Is(err, ErrEmptyQuestion):
		return "Tulis pertanyaanmu setelah perintah, misalnya: /ask boleh ganti nasi dengan kentang?"
	case errors.Is(err, ErrKeysFixed):
		return "API key diatur oleh admin bot."
	case errors.Is(err, ErrWrongView):
		return "Perintah ini tidak bisa dipakai sekarang."
	case errors.Is(err, models.ErrInvalidProfile):
		return "Data profil belum lengkap atau tidak valid."
	default:
		return "Terjadi kesalahan. Silakan coba lagi."
	}
}
